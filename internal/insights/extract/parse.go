package extract

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	domaininsights "github.com/yungbote/mindjourney-backend/internal/domain/insights"
)

// Candidate is a validated insight proposed by the model.
type Candidate struct {
	TextSnippet     string
	CategoryName    string
	CategoryType    domaininsights.CategoryType
	SentimentScore  float64
	ConfidenceScore float64
	StartPosition   int
	EndPosition     int
}

// number accepts JSON numbers and numeric strings.
type number struct {
	val float64
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		n.val, n.set = f, true
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	n.val, n.set = f, true
	return nil
}

type rawCandidate struct {
	TextSnippet     string `json:"text_snippet"`
	CategoryName    string `json:"category_name"`
	CategoryType    string `json:"category_type"`
	SentimentScore  number `json:"sentiment_score"`
	ConfidenceScore number `json:"confidence_score"`
	StartPosition   number `json:"start_position"`
	EndPosition     number `json:"end_position"`
}

// FirstJSONArray returns the first well-formed JSON array embedded in raw,
// skipping prose, code fences and brackets that do not open valid JSON.
func FirstJSONArray(raw string) ([]json.RawMessage, bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '[' {
			continue
		}
		var arr []json.RawMessage
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		if err := dec.Decode(&arr); err == nil {
			return arr, true
		}
	}
	return nil, false
}

// FirstJSONObject is FirstJSONArray for objects.
func FirstJSONObject(raw string) (map[string]json.RawMessage, bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		var obj map[string]json.RawMessage
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		if err := dec.Decode(&obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

// ParseCandidates turns a model response into validated candidates. It never
// fails: an unparseable response yields an empty slice and invalid elements
// are dropped individually.
func ParseCandidates(raw, source string) []Candidate {
	arr, ok := FirstJSONArray(raw)
	if !ok {
		return []Candidate{}
	}
	lowerSource := strings.ToLower(source)
	out := make([]Candidate, 0, len(arr))
	for _, elem := range arr {
		c, ok := validate(elem)
		if !ok {
			continue
		}
		if !strings.Contains(lowerSource, strings.ToLower(c.TextSnippet)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func validate(elem json.RawMessage) (Candidate, bool) {
	var rc rawCandidate
	if err := json.Unmarshal(elem, &rc); err != nil {
		return Candidate{}, false
	}
	snippet := strings.TrimSpace(rc.TextSnippet)
	name := strings.TrimSpace(rc.CategoryName)
	if snippet == "" || name == "" {
		return Candidate{}, false
	}
	if !rc.SentimentScore.set || !rc.ConfidenceScore.set || !rc.StartPosition.set || !rc.EndPosition.set {
		return Candidate{}, false
	}
	s, c := rc.SentimentScore.val, rc.ConfidenceScore.val
	if s < -1 || s > 1 || c < 0 || c > 1 {
		return Candidate{}, false
	}
	start, ok := wholeNonNegative(rc.StartPosition.val)
	if !ok {
		return Candidate{}, false
	}
	end, ok := wholeNonNegative(rc.EndPosition.val)
	if !ok || end < start {
		return Candidate{}, false
	}
	return Candidate{
		TextSnippet:     snippet,
		CategoryName:    name,
		CategoryType:    domaininsights.ParseCategoryType(rc.CategoryType),
		SentimentScore:  s,
		ConfidenceScore: c,
		StartPosition:   start,
		EndPosition:     end,
	}, true
}

func wholeNonNegative(f float64) (int, bool) {
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Scored is anything carrying a sentiment and a confidence.
type Scored interface {
	Scores() (sentiment, confidence float64)
}

func (c Candidate) Scores() (float64, float64) { return c.SentimentScore, c.ConfidenceScore }

// OverallSentiment is the confidence-weighted mean sentiment, 0 for an empty
// set or when every confidence is zero.
func OverallSentiment[T Scored](items []T) float64 {
	var weighted, total float64
	for _, it := range items {
		s, c := it.Scores()
		weighted += s * c
		total += c
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
