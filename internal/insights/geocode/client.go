package geocode

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mindjourney-backend/internal/insights/extract"
	"github.com/yungbote/mindjourney-backend/internal/insights/prompts"
	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/platform/openai"
)

// MinConfidence is the floor below which a place or a coordinate answer is discarded.
const MinConfidence = 0.3

const defaultConcurrency = 4

// Location is a fully resolved geocoding answer. It is only ever returned
// complete.
type Location struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ResolvedName string  `json:"resolved_name"`
}

// Place is a place mention that was successfully geocoded.
type Place struct {
	Name       string   `json:"name"`
	Context    string   `json:"context,omitempty"`
	Confidence float64  `json:"confidence"`
	Location   Location `json:"location"`
}

type Geocoder interface {
	GeocodePlace(ctx context.Context, name, placeContext string) (Location, error)
	ExtractPlaces(ctx context.Context, text string) ([]Place, error)
}

type Client struct {
	log         *logger.Logger
	llm         openai.Client
	prompts     *prompts.Set
	concurrency int
}

type Option func(*Client)

// WithConcurrency caps the number of parallel GeocodePlace calls made by ExtractPlaces.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewClient(log *logger.Logger, llm openai.Client, set *prompts.Set, opts ...Option) *Client {
	if set == nil {
		set = prompts.Default()
	}
	c := &Client{
		log:         log.With("component", "GeocodingClient"),
		llm:         llm,
		prompts:     set,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GeocodePlace(ctx context.Context, name, placeContext string) (Location, error) {
	const op = "geocode.GeocodePlace"
	name = strings.TrimSpace(name)
	if name == "" {
		return Location{}, apperr.New(apperr.CodeValidation, op, "empty place name")
	}
	reply, err := c.generate(ctx, op, prompts.GeocodePlace, struct{ Name, Context string }{name, strings.TrimSpace(placeContext)})
	if err != nil {
		return Location{}, err
	}
	loc, err := parseLocation(op, reply, name)
	observability.Current().IncGeocode(outcomeOf(err))
	return loc, err
}

func parseLocation(op, reply, name string) (Location, error) {
	obj, ok := extract.FirstJSONObject(reply)
	if !ok {
		return Location{}, apperr.New(apperr.CodeUpstream, op, "no JSON object in geocoding reply")
	}
	if msg, ok := obj["error"]; ok {
		var s string
		_ = json.Unmarshal(msg, &s)
		if s == "" {
			s = "location not found"
		}
		return Location{}, apperr.New(apperr.CodeLowConfidence, op, s)
	}
	lat, okLat := floatField(obj, "latitude")
	lon, okLon := floatField(obj, "longitude")
	if !okLat || !okLon {
		return Location{}, apperr.New(apperr.CodeLowConfidence, op, "reply carries no coordinates")
	}
	conf, ok := floatField(obj, "confidence")
	if !ok || conf < MinConfidence {
		return Location{}, apperr.Newf(apperr.CodeLowConfidence, op, "confidence %.2f below %.2f", conf, MinConfidence)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Location{}, apperr.Newf(apperr.CodeInvalidCoordinate, op, "coordinates out of range (%f, %f)", lat, lon)
	}
	resolved := name
	if raw, ok := obj["full_name"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			resolved = strings.TrimSpace(s)
		}
	}
	return Location{Latitude: lat, Longitude: lon, ResolvedName: resolved}, nil
}

func floatField(obj map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := obj[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

type placeMention struct {
	PlaceName  string          `json:"place_name"`
	Context    string          `json:"context"`
	Confidence json.RawMessage `json:"confidence"`
}

// ExtractPlaces asks the model for place mentions in text and geocodes each
// one that clears MinConfidence. Only the extraction call itself can fail;
// places that do not geocode are left out. Result order follows the model's
// order, so element 0 is the most prominent place.
func (c *Client) ExtractPlaces(ctx context.Context, text string) ([]Place, error) {
	const op = "geocode.ExtractPlaces"
	reply, err := c.generate(ctx, op, prompts.ExtractPlaces, struct{ Content string }{text})
	if err != nil {
		return nil, err
	}
	mentions := parseMentions(reply)
	if len(mentions) == 0 {
		return []Place{}, nil
	}

	resolved := make([]*Place, len(mentions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, m := range mentions {
		i, m := i, m
		g.Go(func() error {
			loc, err := c.GeocodePlace(gctx, m.Name, m.Context)
			if err != nil {
				c.log.Debug("Place skipped", "place", m.Name, "code", string(apperr.CodeOf(err)), "error", err)
				return nil
			}
			m.Location = loc
			resolved[i] = &m
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Place, 0, len(resolved))
	for _, p := range resolved {
		if p != nil {
			out = append(out, *p)
		}
	}
	c.log.Debug("Places extracted", "mentions", len(mentions), "geocoded", len(out))
	return out, nil
}

func parseMentions(reply string) []Place {
	arr, ok := extract.FirstJSONArray(reply)
	if !ok {
		return nil
	}
	out := make([]Place, 0, len(arr))
	for _, elem := range arr {
		var pm placeMention
		if err := json.Unmarshal(elem, &pm); err != nil {
			continue
		}
		name := strings.TrimSpace(pm.PlaceName)
		if name == "" {
			continue
		}
		conf, ok := floatField(map[string]json.RawMessage{"c": pm.Confidence}, "c")
		if !ok || conf < MinConfidence {
			continue
		}
		out = append(out, Place{Name: name, Context: strings.TrimSpace(pm.Context), Confidence: conf})
	}
	return out
}

func (c *Client) generate(ctx context.Context, op, name string, data any) (string, error) {
	if c.llm == nil {
		return "", apperr.New(apperr.CodeConfiguration, op, "model client not configured")
	}
	system, user, err := c.prompts.Render(name, data)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfiguration, op, err)
	}
	reply, err := c.llm.GenerateText(ctx, system, user)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUpstream, op, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", apperr.New(apperr.CodeUpstream, op, "empty model reply")
	}
	return reply, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "resolved"
	}
	return string(apperr.CodeOf(err))
}
