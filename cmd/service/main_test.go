package main

import (
	"errors"
	"testing"

	"github.com/kjstillabower/weather-forecast-service/internal/validation"
)

func TestWarmQueries(t *testing.T) {
	queries, err := warmQueries([]string{" Lisbon ", "São Paulo"}, "pt_BR")
	if err != nil {
		t.Fatalf("warmQueries() error = %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("len = %d, want 2", len(queries))
	}
	if queries[0].City != "Lisbon" || queries[0].Lang != "pt_br" {
		t.Errorf("queries[0] = %+v, want Lisbon/pt_br", queries[0])
	}
	if queries[1].City != "São Paulo" {
		t.Errorf("queries[1].City = %q", queries[1].City)
	}
}

func TestWarmQueries_Errors(t *testing.T) {
	if _, err := warmQueries([]string{"<bad>"}, "en"); !errors.Is(err, validation.ErrLocationInvalidChars) {
		t.Errorf("invalid location error = %v, want ErrLocationInvalidChars", err)
	}
	if _, err := warmQueries([]string{"Lisbon"}, "!!"); !errors.Is(err, validation.ErrLanguageUnsupported) {
		t.Errorf("invalid lang error = %v, want ErrLanguageUnsupported", err)
	}
}
