package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultIcon is the "clear day" icon code used when upstream omits one.
const DefaultIcon = "01d"

// CurrentWeather is the normalized current-conditions record. Numeric fields hold
// math.NaN() when upstream omitted them or sent a non-numeric value.
type CurrentWeather struct {
	City         string
	CountryCode  *string
	TemperatureC float64
	Description  string
	Icon         string
	Humidity     float64
	WindSpeedKmh float64
}

// DailyForecast summarizes one UTC calendar day of 3-hour samples.
type DailyForecast struct {
	Date           string `json:"date"`
	DayOfWeek      string `json:"dayOfWeek"`
	TemperatureC   int    `json:"temperatureC"`
	TemperatureMin int    `json:"temperatureMin"`
	TemperatureMax int    `json:"temperatureMax"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	Humidity       int    `json:"humidity"`
	WindSpeedKmh   int    `json:"windSpeedKmh"`
	Precipitation  int    `json:"precipitation"`
	UVIndex        int    `json:"uvIndex"`
}

// WeeklyForecast holds up to seven daily summaries in ascending date order.
type WeeklyForecast struct {
	City        string          `json:"city"`
	CountryCode *string         `json:"countryCode,omitempty"`
	Daily       []DailyForecast `json:"daily"`
}

// Overview pairs the current conditions and weekly forecast fetched for one query.
type Overview struct {
	Current CurrentWeather `json:"current"`
	Weekly  WeeklyForecast `json:"weekly"`
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Query identifies what to fetch: either a city name or coordinates, plus the
// upstream language code.
type Query struct {
	City        string
	Coordinates *Coordinates
	Lang        string
}

// Key returns a stable cache key for the query.
func (q Query) Key() string {
	lang := strings.ToLower(q.Lang)
	if q.Coordinates != nil {
		return fmt.Sprintf("coord:%s,%s:%s",
			strconv.FormatFloat(q.Coordinates.Lat, 'f', 4, 64),
			strconv.FormatFloat(q.Coordinates.Lon, 'f', 4, 64),
			lang)
	}
	return "city:" + strings.ToLower(strings.TrimSpace(q.City)) + ":" + lang
}

// String is used for logs and metric labels.
func (q Query) String() string {
	if q.Coordinates != nil {
		return fmt.Sprintf("%.4f,%.4f", q.Coordinates.Lat, q.Coordinates.Lon)
	}
	return strings.ToLower(strings.TrimSpace(q.City))
}

// currentWeatherJSON is the wire shape of CurrentWeather. encoding/json refuses NaN,
// so sentinels travel as null.
type currentWeatherJSON struct {
	City         string   `json:"city"`
	CountryCode  *string  `json:"countryCode,omitempty"`
	TemperatureC *float64 `json:"temperatureC"`
	Description  string   `json:"description"`
	Icon         string   `json:"icon"`
	Humidity     *float64 `json:"humidity"`
	WindSpeedKmh *float64 `json:"windSpeedKmh"`
}

// MarshalJSON encodes NaN measurements as null.
func (c CurrentWeather) MarshalJSON() ([]byte, error) {
	return json.Marshal(currentWeatherJSON{
		City:         c.City,
		CountryCode:  c.CountryCode,
		TemperatureC: nanToNil(c.TemperatureC),
		Description:  c.Description,
		Icon:         c.Icon,
		Humidity:     nanToNil(c.Humidity),
		WindSpeedKmh: nanToNil(c.WindSpeedKmh),
	})
}

// UnmarshalJSON restores null measurements to NaN.
func (c *CurrentWeather) UnmarshalJSON(data []byte) error {
	var w currentWeatherJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = CurrentWeather{
		City:         w.City,
		CountryCode:  w.CountryCode,
		TemperatureC: nilToNaN(w.TemperatureC),
		Description:  w.Description,
		Icon:         w.Icon,
		Humidity:     nilToNaN(w.Humidity),
		WindSpeedKmh: nilToNaN(w.WindSpeedKmh),
	}
	return nil
}

func nanToNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func nilToNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}
