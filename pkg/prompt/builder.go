package prompt

import (
	"fmt"
	"sort"
	"strings"
)

const baseSystemPrompt = `You are a helpful assistant embedded in the administration area of {{site_name}}.
You answer questions about the site and manage its content through the tools
provided to you. Prefer calling a tool over guessing. Never fabricate post IDs
or setting values; look them up first. Keep answers short and concrete.`

const defaultSiteName = "this site"

// render substitutes {{name}} placeholders in text. Missing keys are left
// untouched so a malformed profile never blanks part of the prompt.
func render(text string, vars map[string]any) string {
	for key, val := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", fmt.Sprint(val))
	}
	return text
}

// BuildSystem assembles the system prompt from the optional site profile and
// custom-prompt inputs. The result is treated as an opaque string downstream.
//
// Profile keys are folded into the base template and appended as a context
// section in stable order; a custom prompt, when present, is appended last so
// it can refine or override the defaults.
func BuildSystem(profile map[string]any, custom string) string {
	vars := map[string]any{"site_name": defaultSiteName}
	if name, ok := profile["site_name"].(string); ok && name != "" {
		vars["site_name"] = name
	}

	var b strings.Builder
	b.WriteString(render(baseSystemPrompt, vars))

	if len(profile) > 0 {
		keys := make([]string, 0, len(profile))
		for k := range profile {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\n\nSite context:\n")
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("- %s: %v\n", k, profile[k]))
		}
	}

	if custom = strings.TrimSpace(custom); custom != "" {
		b.WriteString("\n\n")
		b.WriteString(custom)
	}

	return b.String()
}
