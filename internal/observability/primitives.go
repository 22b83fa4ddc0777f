package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Series is a labeled counter or gauge family rendered in Prometheus text format.
type Series struct {
	name   string
	help   string
	kind   string
	labels []string

	mu     sync.RWMutex
	values map[string]float64
}

func newSeries(kind, name, help string, labels ...string) *Series {
	return &Series{name: name, help: help, kind: kind, labels: labels, values: map[string]float64{}}
}

func NewCounterVec(name, help string, labels ...string) *Series {
	return newSeries("counter", name, help, labels...)
}

func NewGaugeVec(name, help string, labels ...string) *Series {
	return newSeries("gauge", name, help, labels...)
}

func (s *Series) Add(v float64, labelValues ...string) {
	if s == nil {
		return
	}
	key := renderLabels(s.labels, labelValues)
	s.mu.Lock()
	s.values[key] += v
	s.mu.Unlock()
}

func (s *Series) Inc(labelValues ...string) { s.Add(1, labelValues...) }

func (s *Series) Set(v float64, labelValues ...string) {
	if s == nil {
		return
	}
	key := renderLabels(s.labels, labelValues)
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
}

// Value returns the current value for one label combination.
func (s *Series) Value(labelValues ...string) float64 {
	if s == nil {
		return 0
	}
	key := renderLabels(s.labels, labelValues)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *Series) WritePrometheus(w io.Writer) error {
	if s == nil {
		return nil
	}
	if err := writeHeader(w, s.name, s.help, s.kind); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range sortedKeys(s.values) {
		if _, err := fmt.Fprintf(w, "%s%s %g\n", s.name, k, s.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type Histogram struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu   sync.Mutex
	data map[string]*histData
}

type histData struct {
	counts []uint64
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, buckets []float64, labels ...string) *Histogram {
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &Histogram{name: name, help: help, labels: labels, buckets: b, data: map[string]*histData{}}
}

func (h *Histogram) Observe(v float64, labelValues ...string) {
	if h == nil {
		return
	}
	key := renderLabels(h.labels, labelValues)
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.data[key]
	if !ok {
		d = &histData{counts: make([]uint64, len(h.buckets))}
		h.data[key] = d
	}
	d.sum += v
	d.total++
	for i, b := range h.buckets {
		if v <= b {
			d.counts[i]++
		}
	}
}

func (h *Histogram) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if err := writeHeader(w, h.name, h.help, "histogram"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.data))
	for k := range h.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d := h.data[k]
		for i, b := range h.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, appendLe(k, fmt.Sprintf("%g", b)), d.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, appendLe(k, "+Inf"), d.total); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %g\n%s_count%s %d\n", h.name, k, d.sum, h.name, k, d.total); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w io.Writer, name, help, kind string) error {
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	return err
}

func renderLabels(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, n := range names {
		v := "unknown"
		if i < len(values) && values[i] != "" {
			v = values[i]
		}
		parts[i] = n + `="` + escapeLabelValue(v) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabelValue(v string) string { return labelEscaper.Replace(v) }

func appendLe(labels, le string) string {
	if labels == "" {
		return `{le="` + le + `"}`
	}
	return strings.TrimSuffix(labels, "}") + `,le="` + le + `"}`
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
