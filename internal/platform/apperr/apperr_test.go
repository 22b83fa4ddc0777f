package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := New(CodeConfiguration, "openai.GenerateText", "OPENAI_API_KEY not set")
	outer := Wrap(CodeUpstream, "extract", fmt.Errorf("call: %w", inner))
	if got := CodeOf(outer); got != CodeConfiguration {
		t.Fatalf("CodeOf = %q, want configuration", got)
	}
}

func TestRetriable(t *testing.T) {
	cases := map[Code]bool{
		CodeConfiguration: false,
		CodeNotFound:      false,
		CodeValidation:    false,
		CodeUpstream:      true,
		CodeInternal:      true,
	}
	for code, want := range cases {
		if got := Retriable(New(code, "op", "x")); got != want {
			t.Errorf("Retriable(%s) = %v, want %v", code, got, want)
		}
	}
	if !Retriable(errors.New("plain")) {
		t.Fatalf("untyped errors should be retriable")
	}
	if Retriable(nil) {
		t.Fatalf("nil is not retriable")
	}
}

func TestMapDB(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{gorm.ErrRecordNotFound, CodeNotFound},
		{&pgconn.PgError{Code: "23505"}, CodeConflict},
		{&pgconn.PgError{Code: "40P01"}, CodeUpstream},
		{context.DeadlineExceeded, CodeUpstream},
		{errors.New("UNIQUE constraint failed: category.name"), CodeConflict},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		if got := CodeOf(MapDB("op", tc.err)); got != tc.want {
			t.Errorf("MapDB(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := New(CodeLowConfidence, "geocode.GeocodePlace", "confidence 0.20 below 0.30")
	want := "geocode.GeocodePlace: confidence 0.20 below 0.30 (low_confidence)"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}
