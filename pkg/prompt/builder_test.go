package prompt

import (
	"strings"
	"testing"
)

func TestBuildSystem_Defaults(t *testing.T) {
	got := BuildSystem(nil, "")
	if !strings.Contains(got, "this site") {
		t.Errorf("default site name missing from prompt: %q", got)
	}
	if strings.Contains(got, "{{") {
		t.Errorf("unresolved placeholder in prompt: %q", got)
	}
	if strings.Contains(got, "Site context:") {
		t.Error("no profile, no context section")
	}
}

func TestBuildSystem_Profile(t *testing.T) {
	got := BuildSystem(map[string]any{
		"site_name": "Acme Blog",
		"theme":     "twentytwentyfive",
		"plugins":   3,
	}, "")

	if !strings.Contains(got, "Acme Blog") {
		t.Errorf("site name not folded into template: %q", got)
	}
	if !strings.Contains(got, "- theme: twentytwentyfive") {
		t.Errorf("profile key missing: %q", got)
	}
	// Keys appear in sorted order so the prompt is stable across requests.
	plugins := strings.Index(got, "- plugins:")
	theme := strings.Index(got, "- theme:")
	if plugins == -1 || theme == -1 || plugins > theme {
		t.Errorf("profile keys not in stable order: %q", got)
	}
}

func TestBuildSystem_CustomPromptLast(t *testing.T) {
	got := BuildSystem(map[string]any{"site_name": "Acme"}, "  Always answer in French.  ")

	if !strings.HasSuffix(got, "Always answer in French.") {
		t.Errorf("custom prompt must come last, trimmed: %q", got)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		text string
		vars map[string]any
		want string
	}{
		{"Simple", "Hello {{name}}", map[string]any{"name": "Agent"}, "Hello Agent"},
		{"Missing Key Untouched", "Hello {{name}}", nil, "Hello {{name}}"},
		{"Repeated", "{{x}} and {{x}}", map[string]any{"x": "y"}, "y and y"},
		{"Non String Value", "n={{n}}", map[string]any{"n": 7}, "n=7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(tt.text, tt.vars); got != tt.want {
				t.Errorf("render() = %q, want %q", got, tt.want)
			}
		})
	}
}
