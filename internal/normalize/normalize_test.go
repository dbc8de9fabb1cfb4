package normalize

import (
	"math"
	"testing"

	"github.com/kjstillabower/weather-forecast-service/internal/rawjson"
)

func mustDecode(t *testing.T, s string) rawjson.Value {
	t.Helper()
	v, err := rawjson.Decode([]byte(s))
	if err != nil {
		t.Fatalf("rawjson.Decode(%s) error = %v", s, err)
	}
	return v
}

// TestCurrent_EmptyObject verifies that an empty payload yields every sentinel
// without panicking.
func TestCurrent_EmptyObject(t *testing.T) {
	got := Current(mustDecode(t, `{}`))

	if got.City != "" {
		t.Errorf("City = %q, want empty", got.City)
	}
	if got.CountryCode != nil {
		t.Errorf("CountryCode = %q, want nil", *got.CountryCode)
	}
	if got.Description != "" {
		t.Errorf("Description = %q, want empty", got.Description)
	}
	if got.Icon != "01d" {
		t.Errorf("Icon = %q, want 01d", got.Icon)
	}
	if !math.IsNaN(got.TemperatureC) {
		t.Errorf("TemperatureC = %v, want NaN", got.TemperatureC)
	}
	if !math.IsNaN(got.Humidity) {
		t.Errorf("Humidity = %v, want NaN", got.Humidity)
	}
	if !math.IsNaN(got.WindSpeedKmh) {
		t.Errorf("WindSpeedKmh = %v, want NaN", got.WindSpeedKmh)
	}
}

func TestCurrent_FullPayload(t *testing.T) {
	got := Current(mustDecode(t, `{
		"name": "São Paulo",
		"sys": {"country": "BR"},
		"main": {"temp": 23.4, "humidity": 71},
		"wind": {"speed": 4.1},
		"weather": [
			{"description": "nuvens dispersas", "icon": "03d"},
			{"description": "chuva", "icon": "10d"}
		]
	}`))

	if got.City != "São Paulo" {
		t.Errorf("City = %q, want %q", got.City, "São Paulo")
	}
	if got.CountryCode == nil || *got.CountryCode != "BR" {
		t.Errorf("CountryCode = %v, want BR", got.CountryCode)
	}
	if got.TemperatureC != 23.4 {
		t.Errorf("TemperatureC = %v, want 23.4", got.TemperatureC)
	}
	if got.Humidity != 71 {
		t.Errorf("Humidity = %v, want 71", got.Humidity)
	}
	// 4.1 m/s * 3.6 = 14.76 km/h
	if got.WindSpeedKmh != 15 {
		t.Errorf("WindSpeedKmh = %v, want 15", got.WindSpeedKmh)
	}
	if got.Description != "nuvens dispersas" || got.Icon != "03d" {
		t.Errorf("condition = (%q, %q), want first entry (nuvens dispersas, 03d)", got.Description, got.Icon)
	}
}

// TestCurrent_FieldIndependence verifies that a malformed field falls back to its
// sentinel while its neighbours are still read.
func TestCurrent_FieldIndependence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, v rawjson.Value)
	}{
		{
			name:  "string temperature",
			input: `{"main": {"temp": "21", "humidity": 40}}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if !math.IsNaN(got.TemperatureC) {
					t.Errorf("TemperatureC = %v, want NaN", got.TemperatureC)
				}
				if got.Humidity != 40 {
					t.Errorf("Humidity = %v, want 40", got.Humidity)
				}
			},
		},
		{
			name:  "wind speed null",
			input: `{"wind": {"speed": null}, "main": {"temp": 5}}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if !math.IsNaN(got.WindSpeedKmh) {
					t.Errorf("WindSpeedKmh = %v, want NaN", got.WindSpeedKmh)
				}
				if got.TemperatureC != 5 {
					t.Errorf("TemperatureC = %v, want 5", got.TemperatureC)
				}
			},
		},
		{
			name:  "weather not a list",
			input: `{"weather": {"description": "rain"}, "name": "Oslo"}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if got.Description != "" || got.Icon != "01d" {
					t.Errorf("condition = (%q, %q), want (\"\", 01d)", got.Description, got.Icon)
				}
				if got.City != "Oslo" {
					t.Errorf("City = %q, want Oslo", got.City)
				}
			},
		},
		{
			name:  "weather empty list",
			input: `{"weather": []}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if got.Description != "" || got.Icon != "01d" {
					t.Errorf("condition = (%q, %q), want (\"\", 01d)", got.Description, got.Icon)
				}
			},
		},
		{
			name:  "first entry missing icon",
			input: `{"weather": [{"description": "mist"}]}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if got.Description != "mist" || got.Icon != "01d" {
					t.Errorf("condition = (%q, %q), want (mist, 01d)", got.Description, got.Icon)
				}
			},
		},
		{
			name:  "numeric name and country",
			input: `{"name": 12, "sys": {"country": 55}}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if got.City != "" {
					t.Errorf("City = %q, want empty", got.City)
				}
				if got.CountryCode != nil {
					t.Errorf("CountryCode = %q, want nil", *got.CountryCode)
				}
			},
		},
		{
			name:  "empty country string kept",
			input: `{"sys": {"country": ""}}`,
			check: func(t *testing.T, v rawjson.Value) {
				got := Current(v)
				if got.CountryCode == nil || *got.CountryCode != "" {
					t.Errorf("CountryCode = %v, want pointer to empty string", got.CountryCode)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustDecode(t, tt.input))
		})
	}
}

func TestCurrent_WindConversionRounding(t *testing.T) {
	tests := []struct {
		speed string
		want  float64
	}{
		{"10", 36},
		{"0", 0},
		{"2.5", 9},  // 9.0
		{"1.25", 5}, // 4.5 rounds away from zero
		{"3.3", 12}, // 11.88
	}
	for _, tt := range tests {
		got := Current(mustDecode(t, `{"wind": {"speed": `+tt.speed+`}}`))
		if got.WindSpeedKmh != tt.want {
			t.Errorf("speed %s m/s: WindSpeedKmh = %v, want %v", tt.speed, got.WindSpeedKmh, tt.want)
		}
	}
}

func TestCurrentFromBytes_Malformed(t *testing.T) {
	got := CurrentFromBytes([]byte(`<html>bad gateway</html>`))
	if got.Icon != "01d" || got.City != "" || !math.IsNaN(got.TemperatureC) {
		t.Errorf("CurrentFromBytes(malformed) = %+v, want sentinels", got)
	}
}
