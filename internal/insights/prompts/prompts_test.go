package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRendersAllPrompts(t *testing.T) {
	s := Default()
	_, user, err := s.Render(ExtractInsights, struct{ Content string }{"I loved the pizza."})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(user, "I loved the pizza.") || !strings.Contains(user, `"text_snippet"`) {
		t.Fatalf("extract prompt missing content or schema:\n%s", user)
	}

	_, user, err = s.Render(GeocodePlace, struct{ Name, Context string }{"Olomouc", ""})
	if err != nil {
		t.Fatalf("render geocode: %v", err)
	}
	if strings.Contains(user, "Additional context") {
		t.Fatalf("empty context should be omitted:\n%s", user)
	}
	_, user, _ = s.Render(GeocodePlace, struct{ Name, Context string }{"Olomouc", "Czech Republic"})
	if !strings.Contains(user, "Additional context: Czech Republic") {
		t.Fatalf("context not rendered:\n%s", user)
	}
}

func TestParseRejectsMissingPrompt(t *testing.T) {
	_, err := Parse([]byte("prompts:\n  extract_insights:\n    user: hi\n"))
	if err == nil {
		t.Fatalf("expected error for missing prompts")
	}
}

func TestLoadOverride(t *testing.T) {
	var b strings.Builder
	b.WriteString("prompts:\n")
	for _, name := range required {
		b.WriteString("  " + name + ":\n    system: s\n    user: custom {{.Content}}\n")
	}
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(overrideEnv, path)
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, user, err := s.Render(GenerateTitle, struct{ Content string }{"x"})
	if err != nil || user != "custom x" {
		t.Fatalf("override not used: %q %v", user, err)
	}
}
