package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const overrideEnv = "INSIGHTS_PROMPTS_YAML"

const (
	ExtractInsights = "extract_insights"
	GenerateTitle   = "generate_title"
	GeocodePlace    = "geocode_place"
	ExtractPlaces   = "extract_places"
)

var required = []string{ExtractInsights, GenerateTitle, GeocodePlace, ExtractPlaces}

//go:embed prompts.yaml
var embedded []byte

type yamlFile struct {
	Version int                   `yaml:"version"`
	Prompts map[string]yamlPrompt `yaml:"prompts"`
}

type yamlPrompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type prompt struct {
	system string
	user   *template.Template
}

// Set holds the parsed prompt templates.
type Set struct {
	prompts map[string]prompt
}

// Load reads INSIGHTS_PROMPTS_YAML when set, otherwise the embedded defaults.
func Load() (*Set, error) {
	if path := strings.TrimSpace(os.Getenv(overrideEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return Parse(raw)
	}
	return Parse(embedded)
}

// Default returns the embedded prompts and panics if they are broken.
func Default() *Set {
	s, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts invalid: %v", err))
	}
	return s
}

func Parse(raw []byte) (*Set, error) {
	var f yamlFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prompts yaml: %w", err)
	}
	s := &Set{prompts: make(map[string]prompt, len(f.Prompts))}
	for name, p := range f.Prompts {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		s.prompts[name] = prompt{system: strings.TrimSpace(p.System), user: tmpl}
	}
	for _, name := range required {
		if _, ok := s.prompts[name]; !ok {
			return nil, fmt.Errorf("prompt %s missing", name)
		}
	}
	return s, nil
}

// Render returns the system and user messages for name.
func (s *Set) Render(name string, data any) (string, string, error) {
	p, ok := s.prompts[name]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := p.user.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return p.system, b.String(), nil
}
