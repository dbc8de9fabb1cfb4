// Package normalize maps loosely-typed current-conditions payloads into
// models.CurrentWeather. Every field is read independently; a missing or
// mistyped field yields its sentinel and never affects the others.
package normalize

import (
	"math"

	"github.com/kjstillabower/weather-forecast-service/internal/models"
	"github.com/kjstillabower/weather-forecast-service/internal/observability"
	"github.com/kjstillabower/weather-forecast-service/internal/rawjson"
)

// msToKmh converts meters per second to kilometers per hour.
const msToKmh = 3.6

// Current builds a CurrentWeather from a decoded /weather response. It never fails.
//
// Field policy:
//   - name          -> City, "" unless a string
//   - sys.country   -> CountryCode, nil unless a string
//   - main.temp     -> TemperatureC, NaN unless a number
//   - main.humidity -> Humidity, NaN unless a number
//   - wind.speed    -> WindSpeedKmh, round(speed*3.6), NaN unless a number
//   - weather[0]    -> Description ("" default) and Icon ("01d" default)
func Current(raw rawjson.Value) models.CurrentWeather {
	city, _ := raw.Get("name").Str()

	var countryCode *string
	if cc, ok := raw.Get("sys").Get("country").Str(); ok {
		countryCode = &cc
	}

	main := raw.Get("main")
	temperature := numberOrNaN(main.Get("temp"), "temperature")
	humidity := numberOrNaN(main.Get("humidity"), "humidity")

	windKmh := math.NaN()
	if speed, ok := raw.Get("wind").Get("speed").Float(); ok {
		windKmh = math.Round(speed * msToKmh)
	} else {
		observability.NormalizerSentinelsTotal.WithLabelValues("wind_speed").Inc()
	}

	description, icon := Condition(raw.Get("weather"))

	return models.CurrentWeather{
		City:         city,
		CountryCode:  countryCode,
		TemperatureC: temperature,
		Description:  description,
		Icon:         icon,
		Humidity:     humidity,
		WindSpeedKmh: windKmh,
	}
}

// CurrentFromBytes decodes body and normalizes it. An undecodable body is treated
// like an empty object, so the result is all sentinels.
func CurrentFromBytes(body []byte) models.CurrentWeather {
	raw, err := rawjson.Decode(body)
	if err != nil {
		return Current(rawjson.Value{})
	}
	return Current(raw)
}

// Condition reads description and icon from the first entry of a weather
// condition list. Only index 0 is consulted.
func Condition(list rawjson.Value) (description, icon string) {
	first := list.Index(0)
	description, _ = first.Get("description").Str()
	icon, ok := first.Get("icon").Str()
	if !ok {
		icon = models.DefaultIcon
	}
	return description, icon
}

func numberOrNaN(v rawjson.Value, field string) float64 {
	if f, ok := v.Float(); ok {
		return f
	}
	observability.NormalizerSentinelsTotal.WithLabelValues(field).Inc()
	return math.NaN()
}
