// Package templates renders the prompts sent for each synthesis kind.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// TemplateData holds the sections a prompt may reference. Templates only
// use the fields relevant to their kind.
type TemplateData struct {
	ProductionContent      string `json:"production_content"`
	Instructions           string `json:"instructions,omitempty"`
	ProjectContext         string `json:"project_context,omitempty"`
	DependencyDescription  string `json:"dependency_description,omitempty"`
	TestPlan               string `json:"test_plan,omitempty"`
	TestExamples           string `json:"test_examples,omitempty"`
	CurrentTestContent     string `json:"current_test_content,omitempty"`
	GeneratedTestContent   string `json:"generated_test_content,omitempty"`
	RefinementInstructions string `json:"refinement_instructions,omitempty"`
	TestOutput             string `json:"test_output,omitempty"`
}

// PromptTemplate names an embedded prompt template.
type PromptTemplate string

const (
	// TestPlanTemplate asks for the list of tests a production file needs.
	TestPlanTemplate PromptTemplate = "test_plan.tpl.md"
	// DependencyExtractionTemplate asks for the classes a production file depends on.
	DependencyExtractionTemplate PromptTemplate = "dependency_extraction.tpl.md"
	// TestCodeTemplate asks for the full content of the test file.
	TestCodeTemplate PromptTemplate = "test_code.tpl.md"
	// RefinementTemplate asks for an improved version of generated tests.
	RefinementTemplate PromptTemplate = "refinement.tpl.md"
	// JudgmentTemplate asks whether test command output is a success.
	JudgmentTemplate PromptTemplate = "judgment.tpl.md"
)

// Renderer handles prompt template rendering.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[PromptTemplate]*template.Template),
	}

	templateNames := []PromptTemplate{
		TestPlanTemplate,
		DependencyExtractionTemplate,
		TestCodeTemplate,
		RefinementTemplate,
		JudgmentTemplate,
	}

	for _, name := range templateNames {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).
			Option("missingkey=error").
			Funcs(template.FuncMap{"contains": strings.Contains}).
			Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName PromptTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}
	if data == nil {
		data = &TemplateData{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// GetAvailableTemplates returns the names of all loaded templates, sorted.
func (r *Renderer) GetAvailableTemplates() []PromptTemplate {
	names := make([]PromptTemplate, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
