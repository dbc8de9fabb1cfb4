// Package validation turns raw query parameters into a models.Query.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/kjstillabower/weather-forecast-service/internal/models"
)

var (
	// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
	ErrLocationEmpty = errors.New("location is required")
	// ErrLocationTooShort is returned when location length is below the minimum.
	ErrLocationTooShort = errors.New("location too short")
	// ErrLocationTooLong is returned when location length exceeds the maximum.
	ErrLocationTooLong = errors.New("location too long")
	// ErrLocationInvalidChars is returned when location contains disallowed characters.
	ErrLocationInvalidChars = errors.New("location contains invalid characters")

	ErrLocationAmbiguous   = errors.New("provide either city or lat/lon, not both")
	ErrCoordinatesMissing  = errors.New("lat and lon must be provided together")
	ErrCoordinatesInvalid  = errors.New("lat must be within [-90,90] and lon within [-180,180]")
	ErrLanguageUnsupported = errors.New("lang is not a valid language tag")
)

// Options bounds city names and supplies the language used when lang is absent.
type Options struct {
	MinCityLen  int
	MaxCityLen  int
	DefaultLang string
}

var validate = validator.New()

type coordinates struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// ParseQuery reads city, lat, lon and lang. Exactly one of city or the lat/lon pair
// must be present.
func ParseQuery(values url.Values, opts Options) (models.Query, error) {
	city := values.Get("city")
	latRaw, lonRaw := strings.TrimSpace(values.Get("lat")), strings.TrimSpace(values.Get("lon"))
	hasCoords := latRaw != "" || lonRaw != ""

	var q models.Query
	switch {
	case strings.TrimSpace(city) != "" && hasCoords:
		return models.Query{}, ErrLocationAmbiguous
	case hasCoords:
		coords, err := ValidateCoordinates(latRaw, lonRaw)
		if err != nil {
			return models.Query{}, err
		}
		q.Coordinates = &coords
	default:
		c, err := ValidateLocation(city, opts.MinCityLen, opts.MaxCityLen)
		if err != nil {
			return models.Query{}, err
		}
		q.City = c
	}

	lang := values.Get("lang")
	if strings.TrimSpace(lang) == "" {
		lang = opts.DefaultLang
	}
	if strings.TrimSpace(lang) == "" {
		lang = "en"
	}
	code, err := UpstreamLang(lang)
	if err != nil {
		return models.Query{}, err
	}
	q.Lang = code
	return q, nil
}

// ValidateCoordinates parses and range-checks a lat/lon pair.
func ValidateCoordinates(latRaw, lonRaw string) (models.Coordinates, error) {
	if latRaw == "" || lonRaw == "" {
		return models.Coordinates{}, ErrCoordinatesMissing
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lat %q", ErrCoordinatesInvalid, latRaw)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lon %q", ErrCoordinatesInvalid, lonRaw)
	}
	if err := validate.Struct(coordinates{Lat: lat, Lon: lon}); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %s", ErrCoordinatesInvalid, failedFields(err))
	}
	return models.Coordinates{Lat: lat, Lon: lon}, nil
}

func failedFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, strings.ToLower(fe.Field()))
	}
	return strings.Join(names, ",") + " out of range"
}

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to letters (Unicode), digits, space, comma, hyphen, period and
// apostrophe. Returns the trimmed string.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// regionalCodes are the upstream language codes that keep their region.
var regionalCodes = map[string]string{
	"pt-BR": "pt_br",
	"zh-CN": "zh_cn",
	"zh-TW": "zh_tw",
}

// UpstreamLang parses a BCP 47 tag (underscores accepted) and returns the upstream
// code: pt_br, zh_cn and zh_tw keep their region, everything else is the base language.
func UpstreamLang(raw string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrLanguageUnsupported, raw)
	}
	base, _ := tag.Base()
	if region, conf := tag.Region(); conf == language.Exact {
		if code, ok := regionalCodes[base.String()+"-"+region.String()]; ok {
			return code, nil
		}
	}
	if base.String() == "und" {
		return "", fmt.Errorf("%w: %q", ErrLanguageUnsupported, raw)
	}
	return base.String(), nil
}

// IsValidationError reports whether err came from this package.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrLocationEmpty, ErrLocationTooShort, ErrLocationTooLong, ErrLocationInvalidChars,
		ErrLocationAmbiguous, ErrCoordinatesMissing, ErrCoordinatesInvalid, ErrLanguageUnsupported,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
