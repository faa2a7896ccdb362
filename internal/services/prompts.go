package services

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

const (
	promptMetadata  = "metadata"
	promptAnswer    = "answer"
	promptEvaluate  = "evaluate"
	promptSummarize = "summarize"
	promptSuggest   = "suggest"
)

var promptNames = []string{promptMetadata, promptAnswer, promptEvaluate, promptSummarize, promptSuggest}

// Prompts is the compiled prompt catalog.
type Prompts struct {
	templates map[string]*template.Template
}

// LoadPrompts compiles the built-in catalog, with keys from overridePath (if
// set) replacing the defaults.
func LoadPrompts(overridePath string) (*Prompts, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(defaultPrompts, &raw); err != nil {
		return nil, fmt.Errorf("parse built-in prompts: %w", err)
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read prompts file: %w", err)
		}
		override := map[string]string{}
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parse prompts file %s: %w", overridePath, err)
		}
		for k, v := range override {
			if _, known := raw[k]; !known {
				return nil, fmt.Errorf("prompts file %s: unknown prompt %q", overridePath, k)
			}
			raw[k] = v
		}
	}

	p := &Prompts{templates: make(map[string]*template.Template, len(promptNames))}
	for _, name := range promptNames {
		text, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("prompt %q missing", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("compile prompt %q: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

func (p *Prompts) render(name string, data any) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}
