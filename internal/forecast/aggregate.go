// Package forecast reduces 3-hour forecast samples into daily summaries.
package forecast

import (
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"

	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/normalize"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
	"github.com/kjstillabower/weather-forecast-service/internal/rawjson"
)

// MaxDays is the number of distinct calendar dates kept. Dates beyond the first
// MaxDays encountered in input order are dropped.
const MaxDays = 7

const (
	dateLayout = "2006-01-02"
	msToKmh    = 3.6
)

// sample is one decoded 3-hour data point. Missing numeric fields are 0.
type sample struct {
	date        string
	temperature float64
	humidity    float64
	windSpeedMs float64
	pop         float64
	description string
	icon        string
}

// decodeSample is the single place that decides what a missing sample field becomes.
func decodeSample(v rawjson.Value) sample {
	dt := numberOrZero(v.Get("dt"))
	main := v.Get("main")
	description, icon := normalize.Condition(v.Get("weather"))
	return sample{
		date:        time.Unix(int64(dt), 0).UTC().Format(dateLayout),
		temperature: numberOrZero(main.Get("temp")),
		humidity:    numberOrZero(main.Get("humidity")),
		windSpeedMs: numberOrZero(v.Get("wind").Get("speed")),
		pop:         numberOrZero(v.Get("pop")),
		description: description,
		icon:        icon,
	}
}

// numberOrZero treats non-finite numbers like missing ones so averages and int
// conversion stay defined.
func numberOrZero(v rawjson.Value) float64 {
	f, ok := v.Float()
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// Aggregator builds WeeklyForecast values with weekday names in one language.
type Aggregator struct {
	weekdays weekdayNames
}

// NewAggregator returns an Aggregator whose DayOfWeek labels follow lang.
// Unsupported languages fall back to English.
func NewAggregator(lang language.Tag) *Aggregator {
	return &Aggregator{weekdays: weekdaysFor(lang)}
}

var defaultAggregator = NewAggregator(language.English)

// Aggregate reduces samples with English weekday names. See Aggregator.Aggregate.
func Aggregate(samples []rawjson.Value, city string, countryCode *string) models.WeeklyForecast {
	return defaultAggregator.Aggregate(samples, city, countryCode)
}

// AggregatePayload reads list, city.name and city.country from a full /forecast
// response. A payload whose list is not an array yields an empty Daily.
func (a *Aggregator) AggregatePayload(raw rawjson.Value) models.WeeklyForecast {
	samples, _ := raw.Get("list").Array()
	city, _ := raw.Get("city").Get("name").Str()
	var countryCode *string
	if cc, ok := raw.Get("city").Get("country").Str(); ok {
		countryCode = &cc
	}
	return a.Aggregate(samples, city, countryCode)
}

// Aggregate groups samples by UTC calendar date, keeps the first MaxDays dates in
// encounter order, reduces each bucket to a DailyForecast and returns them sorted
// by date. It never fails; no samples means an empty Daily.
func (a *Aggregator) Aggregate(samples []rawjson.Value, city string, countryCode *string) models.WeeklyForecast {
	var order []string
	buckets := make(map[string][]sample)
	dropped := make(map[string]struct{})

	for _, raw := range samples {
		s := decodeSample(raw)
		if _, ok := buckets[s.date]; !ok {
			if len(order) == MaxDays {
				dropped[s.date] = struct{}{}
				continue
			}
			order = append(order, s.date)
		}
		buckets[s.date] = append(buckets[s.date], s)
	}

	observability.AggregatedSamplesTotal.Add(float64(len(samples)))
	if len(dropped) > 0 {
		observability.AggregationDroppedDaysTotal.Add(float64(len(dropped)))
	}

	daily := make([]models.DailyForecast, 0, len(order))
	for _, date := range order {
		daily = append(daily, a.reduce(date, buckets[date]))
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	return models.WeeklyForecast{
		City:        city,
		CountryCode: countryCode,
		Daily:       daily,
	}
}

// reduce summarizes one non-empty bucket. Description and icon come from the
// hottest sample; the first one wins on ties.
func (a *Aggregator) reduce(date string, bucket []sample) models.DailyForecast {
	var sumTemp, sumHumidity, sumWind, sumPop float64
	minTemp, maxTemp := math.Inf(1), math.Inf(-1)
	hottest := bucket[0]

	for _, s := range bucket {
		sumTemp += s.temperature
		sumHumidity += s.humidity
		sumWind += s.windSpeedMs
		sumPop += s.pop
		if s.temperature < minTemp {
			minTemp = s.temperature
		}
		if s.temperature > maxTemp {
			maxTemp = s.temperature
			hottest = s
		}
	}

	n := float64(len(bucket))
	return models.DailyForecast{
		Date:           date,
		DayOfWeek:      a.weekdays.forDate(date),
		TemperatureC:   roundInt(sumTemp / n),
		TemperatureMin: roundInt(minTemp),
		TemperatureMax: roundInt(maxTemp),
		Description:    hottest.description,
		Icon:           hottest.icon,
		Humidity:       roundInt(sumHumidity / n),
		WindSpeedKmh:   roundInt(sumWind / n * msToKmh),
		Precipitation:  roundInt(sumPop / n * 100),
		UVIndex:        0,
	}
}

// roundInt rounds half away from zero.
func roundInt(f float64) int {
	return int(math.Round(f))
}
