package geocode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

// routedLLM answers geocode prompts by place name and everything else with places.
type routedLLM struct {
	mu     sync.Mutex
	places string
	byName map[string]string
	err    error
	calls  int
}

func (r *routedLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	for name, reply := range r.byName {
		if strings.Contains(user, `Place name: "`+name+`"`) {
			return reply, nil
		}
	}
	if strings.Contains(user, "Place name:") {
		return `{"error": "Location not found or ambiguous"}`, nil
	}
	return r.places, nil
}

func TestGeocodePlaceOutcomes(t *testing.T) {
	llm := &routedLLM{byName: map[string]string{
		"Olomouc":  `{"latitude": 49.5938, "longitude": 17.2509, "full_name": "Olomouc, Czech Republic", "confidence": 0.92}`,
		"Somewhere": `Here you go: {"latitude": 10, "longitude": 10, "full_name": "Somewhere", "confidence": 0.2}`,
		"Mars":     `{"latitude": 120.0, "longitude": 10, "confidence": 0.9}`,
		"Bare":     `{"latitude": "48.1", "longitude": "11.5", "confidence": "0.8"}`,
		"Garbled":  `no idea`,
	}}
	c := NewClient(logger.Nop(), llm, nil)
	ctx := context.Background()

	loc, err := c.GeocodePlace(ctx, "Olomouc", "")
	if err != nil {
		t.Fatalf("Olomouc: %v", err)
	}
	if loc.ResolvedName != "Olomouc, Czech Republic" || loc.Latitude != 49.5938 {
		t.Fatalf("unexpected location %+v", loc)
	}

	cases := map[string]apperr.Code{
		"Somewhere": apperr.CodeLowConfidence,
		"Mars":      apperr.CodeInvalidCoordinate,
		"Atlantis":  apperr.CodeLowConfidence,
		"Garbled":   apperr.CodeUpstream,
	}
	for name, want := range cases {
		loc, err := c.GeocodePlace(ctx, name, "")
		if !apperr.IsCode(err, want) {
			t.Fatalf("%s: expected %s, got %v", name, want, err)
		}
		if loc != (Location{}) {
			t.Fatalf("%s: partial result returned: %+v", name, loc)
		}
	}

	loc, err = c.GeocodePlace(ctx, "Bare", "")
	if err != nil {
		t.Fatalf("Bare: %v", err)
	}
	if loc.ResolvedName != "Bare" {
		t.Fatalf("resolved name should default to the query, got %q", loc.ResolvedName)
	}
}

func TestGeocodePlaceTransportErrors(t *testing.T) {
	c := NewClient(logger.Nop(), &routedLLM{err: errors.New("dial tcp: refused")}, nil)
	if _, err := c.GeocodePlace(context.Background(), "Olomouc", ""); !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("expected upstream, got %v", err)
	}
	c = NewClient(logger.Nop(), nil, nil)
	if _, err := c.GeocodePlace(context.Background(), "Olomouc", ""); !apperr.IsCode(err, apperr.CodeConfiguration) {
		t.Fatalf("expected configuration, got %v", err)
	}
}

func TestExtractPlacesPartialBatchKeepsOrder(t *testing.T) {
	llm := &routedLLM{
		places: `[
  {"place_name": "Olomouc", "context": "Czech Republic", "confidence": 0.9},
  {"place_name": "home", "context": "", "confidence": 0.1},
  {"place_name": "Atlantis", "context": "", "confidence": 0.8},
  {"place_name": "", "context": "", "confidence": 0.9},
  {"place_name": "Prague", "context": "Czech Republic", "confidence": 0.7}
]`,
		byName: map[string]string{
			"Olomouc": `{"latitude": 49.59, "longitude": 17.25, "full_name": "Olomouc", "confidence": 0.9}`,
			"Prague":  `{"latitude": 50.08, "longitude": 14.43, "full_name": "Prague", "confidence": 0.9}`,
		},
	}
	c := NewClient(logger.Nop(), llm, nil, WithConcurrency(2))
	got, err := c.ExtractPlaces(context.Background(), "Went from Olomouc to Prague.")
	if err != nil {
		t.Fatalf("ExtractPlaces: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Olomouc" || got[1].Name != "Prague" {
		t.Fatalf("unexpected places %+v", got)
	}
	if got[0].Context != "Czech Republic" {
		t.Fatalf("context lost: %+v", got[0])
	}
	// one extraction call plus Olomouc, Atlantis and Prague
	if llm.calls != 4 {
		t.Fatalf("expected 4 model calls, got %d", llm.calls)
	}
}

func TestExtractPlacesMalformed(t *testing.T) {
	c := NewClient(logger.Nop(), &routedLLM{places: "There are no places here."}, nil)
	got, err := c.ExtractPlaces(context.Background(), "Quiet day.")
	if err != nil {
		t.Fatalf("malformed list must not fail: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no places, got %+v", got)
	}
}
