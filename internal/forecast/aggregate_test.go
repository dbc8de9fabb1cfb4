package forecast

import (
	"testing"

	"golang.org/x/text/language"

	"github.com/kjstillabower/weather-forecast-service/internal/rawjson"
)

// 2024-01-01T00:00:00Z, a Monday.
const baseUnix = 1704067200

const day = 86400

type sampleSpec struct {
	dt          int64
	temp        float64
	humidity    float64
	wind        float64
	pop         float64
	description string
	icon        string
}

func makeSample(s sampleSpec) rawjson.Value {
	weather := []interface{}{}
	if s.description != "" || s.icon != "" {
		weather = append(weather, map[string]interface{}{
			"description": s.description,
			"icon":        s.icon,
		})
	}
	return rawjson.FromInterface(map[string]interface{}{
		"dt": float64(s.dt),
		"main": map[string]interface{}{
			"temp":     s.temp,
			"humidity": s.humidity,
		},
		"wind":    map[string]interface{}{"speed": s.wind},
		"pop":     s.pop,
		"weather": weather,
	})
}

func makeSamples(specs ...sampleSpec) []rawjson.Value {
	out := make([]rawjson.Value, len(specs))
	for i, s := range specs {
		out[i] = makeSample(s)
	}
	return out
}

// TestAggregate_TwoDays feeds 16 three-hour samples covering two calendar dates and
// checks the per-day reductions and ordering.
func TestAggregate_TwoDays(t *testing.T) {
	day1 := []float64{10, 12, 14, 16, 18, 20, 22, 24}
	day2 := []float64{5, 6, 7, 8, 9, 10, 11, 13}
	var specs []sampleSpec
	for i, temp := range day1 {
		specs = append(specs, sampleSpec{dt: baseUnix + int64(i)*3*3600, temp: temp, humidity: 60, wind: 2, pop: 0.2})
	}
	for i, temp := range day2 {
		specs = append(specs, sampleSpec{dt: baseUnix + day + int64(i)*3*3600, temp: temp, humidity: 80, wind: 5, pop: 0.6})
	}

	cc := "BR"
	got := Aggregate(makeSamples(specs...), "Recife", &cc)

	if got.City != "Recife" || got.CountryCode == nil || *got.CountryCode != "BR" {
		t.Errorf("city = (%q, %v), want (Recife, BR)", got.City, got.CountryCode)
	}
	if len(got.Daily) != 2 {
		t.Fatalf("len(Daily) = %d, want 2", len(got.Daily))
	}

	tests := []struct {
		date                 string
		dayOfWeek            string
		mean, min, max       int
		humidity, wind, prec int
	}{
		// mean 17; wind 2 m/s = 7.2 km/h
		{"2024-01-01", "Mon", 17, 10, 24, 60, 7, 20},
		// mean 69/8 = 8.625; wind 5 m/s = 18 km/h
		{"2024-01-02", "Tue", 9, 5, 13, 80, 18, 60},
	}
	for i, tt := range tests {
		d := got.Daily[i]
		if d.Date != tt.date || d.DayOfWeek != tt.dayOfWeek {
			t.Errorf("Daily[%d] date = (%s, %s), want (%s, %s)", i, d.Date, d.DayOfWeek, tt.date, tt.dayOfWeek)
		}
		if d.TemperatureC != tt.mean || d.TemperatureMin != tt.min || d.TemperatureMax != tt.max {
			t.Errorf("Daily[%d] temps = (%d, %d, %d), want (%d, %d, %d)", i,
				d.TemperatureC, d.TemperatureMin, d.TemperatureMax, tt.mean, tt.min, tt.max)
		}
		if d.Humidity != tt.humidity || d.WindSpeedKmh != tt.wind || d.Precipitation != tt.prec {
			t.Errorf("Daily[%d] (humidity, wind, precipitation) = (%d, %d, %d), want (%d, %d, %d)", i,
				d.Humidity, d.WindSpeedKmh, d.Precipitation, tt.humidity, tt.wind, tt.prec)
		}
		if d.UVIndex != 0 {
			t.Errorf("Daily[%d].UVIndex = %d, want 0", i, d.UVIndex)
		}
	}
}

func TestAggregate_TemperatureOrdering(t *testing.T) {
	specs := []sampleSpec{
		{dt: baseUnix, temp: -3.5},
		{dt: baseUnix + 3600, temp: 0.49},
		{dt: baseUnix + 7200, temp: 7.5},
		{dt: baseUnix + day, temp: 30.2},
		{dt: baseUnix + day + 3600, temp: 29.8},
		{dt: baseUnix + 2*day, temp: 12},
	}
	got := Aggregate(makeSamples(specs...), "", nil)
	for _, d := range got.Daily {
		if !(d.TemperatureMin <= d.TemperatureC && d.TemperatureC <= d.TemperatureMax) {
			t.Errorf("%s: min %d <= mean %d <= max %d violated", d.Date, d.TemperatureMin, d.TemperatureC, d.TemperatureMax)
		}
	}
}

// TestAggregate_CapsAtSevenDays verifies that only the first seven distinct dates
// seen in input order survive, even when a later date sorts earlier.
func TestAggregate_CapsAtSevenDays(t *testing.T) {
	// 10 samples over 9 dates; date offsets in encounter order.
	offsets := []int64{8, 1, 2, 2, 3, 4, 5, 6, 0, 7}
	var specs []sampleSpec
	for _, off := range offsets {
		specs = append(specs, sampleSpec{dt: baseUnix + off*day, temp: float64(off)})
	}

	got := Aggregate(makeSamples(specs...), "", nil)
	if len(got.Daily) != 7 {
		t.Fatalf("len(Daily) = %d, want 7", len(got.Daily))
	}
	want := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07", "2024-01-09"}
	for i, d := range got.Daily {
		if d.Date != want[i] {
			t.Errorf("Daily[%d].Date = %s, want %s", i, d.Date, want[i])
		}
	}
}

func TestAggregate_SortsRegardlessOfInputOrder(t *testing.T) {
	specs := []sampleSpec{
		{dt: baseUnix + 4*day},
		{dt: baseUnix + 2*day},
		{dt: baseUnix},
		{dt: baseUnix + 3*day},
		{dt: baseUnix + day},
	}
	got := Aggregate(makeSamples(specs...), "", nil)
	for i := 1; i < len(got.Daily); i++ {
		if got.Daily[i-1].Date > got.Daily[i].Date {
			t.Fatalf("Daily not ascending at %d: %s > %s", i, got.Daily[i-1].Date, got.Daily[i].Date)
		}
	}
}

func TestAggregate_WindConvertedBeforeRounding(t *testing.T) {
	got := Aggregate(makeSamples(sampleSpec{dt: baseUnix, wind: 10}), "", nil)
	if got.Daily[0].WindSpeedKmh != 36 {
		t.Errorf("WindSpeedKmh = %d, want 36", got.Daily[0].WindSpeedKmh)
	}

	// 1.4 m/s = 5.04 km/h; rounding the m/s value first would give 4.
	got = Aggregate(makeSamples(sampleSpec{dt: baseUnix, wind: 1.4}), "", nil)
	if got.Daily[0].WindSpeedKmh != 5 {
		t.Errorf("WindSpeedKmh = %d, want 5", got.Daily[0].WindSpeedKmh)
	}
}

func TestAggregate_HottestSampleDescribesDay(t *testing.T) {
	specs := []sampleSpec{
		{dt: baseUnix, temp: 10, description: "clear", icon: "01d"},
		{dt: baseUnix + 3600, temp: 15, description: "rain", icon: "10d"},
		{dt: baseUnix + 7200, temp: 12, description: "cloud", icon: "03d"},
	}
	got := Aggregate(makeSamples(specs...), "", nil)
	if got.Daily[0].Description != "rain" || got.Daily[0].Icon != "10d" {
		t.Errorf("condition = (%q, %q), want (rain, 10d)", got.Daily[0].Description, got.Daily[0].Icon)
	}
}

func TestAggregate_HottestTieKeepsFirst(t *testing.T) {
	specs := []sampleSpec{
		{dt: baseUnix, temp: 20, description: "haze", icon: "50d"},
		{dt: baseUnix + 3600, temp: 20, description: "clear", icon: "01d"},
	}
	got := Aggregate(makeSamples(specs...), "", nil)
	if got.Daily[0].Description != "haze" {
		t.Errorf("Description = %q, want haze", got.Daily[0].Description)
	}
}

func TestAggregate_PrecipitationScaling(t *testing.T) {
	specs := []sampleSpec{
		{dt: baseUnix, pop: 0.5},
		{dt: baseUnix + 3600, pop: 0.5},
		{dt: baseUnix + 7200, pop: 0.5},
	}
	got := Aggregate(makeSamples(specs...), "", nil)
	if got.Daily[0].Precipitation != 50 {
		t.Errorf("Precipitation = %d, want 50", got.Daily[0].Precipitation)
	}
}

// TestAggregate_MissingFieldsCountAsZero verifies that a sample lacking numeric
// fields stays in the bucket and pulls the averages toward zero.
func TestAggregate_MissingFieldsCountAsZero(t *testing.T) {
	samples := []rawjson.Value{
		makeSample(sampleSpec{dt: baseUnix, temp: 20, humidity: 80, pop: 1}),
		rawjson.FromInterface(map[string]interface{}{"dt": float64(baseUnix + 3600)}),
	}
	got := Aggregate(samples, "", nil)
	if len(got.Daily) != 1 {
		t.Fatalf("len(Daily) = %d, want 1", len(got.Daily))
	}
	d := got.Daily[0]
	if d.TemperatureC != 10 || d.TemperatureMin != 0 || d.TemperatureMax != 20 {
		t.Errorf("temps = (%d, %d, %d), want (10, 0, 20)", d.TemperatureC, d.TemperatureMin, d.TemperatureMax)
	}
	if d.Humidity != 40 || d.Precipitation != 50 {
		t.Errorf("(humidity, precipitation) = (%d, %d), want (40, 50)", d.Humidity, d.Precipitation)
	}
}

func TestAggregate_NonFiniteNumbersCountAsZero(t *testing.T) {
	huge, err := rawjson.Decode([]byte(`{"dt":1704067200,"main":{"temp":1e400,"humidity":-1e400},"wind":{"speed":2}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	samples := []rawjson.Value{makeSample(sampleSpec{dt: baseUnix + 3600, temp: 10, humidity: 50}), huge}
	d := Aggregate(samples, "", nil).Daily[0]
	if d.TemperatureC != 5 || d.TemperatureMax != 10 || d.TemperatureMin != 0 {
		t.Errorf("temps = (%d, %d, %d), want (5, 0, 10)", d.TemperatureC, d.TemperatureMin, d.TemperatureMax)
	}
	if d.Humidity != 25 {
		t.Errorf("Humidity = %d, want 25", d.Humidity)
	}
}

func TestAggregate_ConditionDefaults(t *testing.T) {
	samples := []rawjson.Value{rawjson.FromInterface(map[string]interface{}{"dt": float64(baseUnix)})}
	got := Aggregate(samples, "", nil)
	if got.Daily[0].Description != "" || got.Daily[0].Icon != "01d" {
		t.Errorf("condition = (%q, %q), want (\"\", 01d)", got.Daily[0].Description, got.Daily[0].Icon)
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, "Natal", nil)
	if got.Daily == nil || len(got.Daily) != 0 {
		t.Errorf("Daily = %v, want empty non-nil slice", got.Daily)
	}
}

func TestAggregatePayload(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCity    string
		wantCountry string
		wantDays    int
	}{
		{
			name:        "full payload",
			body:        `{"city":{"name":"Fortaleza","country":"BR"},"list":[{"dt":1704067200,"main":{"temp":28}},{"dt":1704153600,"main":{"temp":29}}]}`,
			wantCity:    "Fortaleza",
			wantCountry: "BR",
			wantDays:    2,
		},
		{
			name:     "list not an array",
			body:     `{"city":{"name":"Belém"},"list":"oops"}`,
			wantCity: "Belém",
			wantDays: 0,
		},
		{
			name:     "empty object",
			body:     `{}`,
			wantDays: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := rawjson.Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			got := NewAggregator(language.English).AggregatePayload(raw)
			if got.City != tt.wantCity {
				t.Errorf("City = %q, want %q", got.City, tt.wantCity)
			}
			if tt.wantCountry == "" && got.CountryCode != nil {
				t.Errorf("CountryCode = %q, want nil", *got.CountryCode)
			}
			if tt.wantCountry != "" && (got.CountryCode == nil || *got.CountryCode != tt.wantCountry) {
				t.Errorf("CountryCode = %v, want %s", got.CountryCode, tt.wantCountry)
			}
			if len(got.Daily) != tt.wantDays {
				t.Errorf("len(Daily) = %d, want %d", len(got.Daily), tt.wantDays)
			}
		})
	}
}
