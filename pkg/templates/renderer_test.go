package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	assert.Equal(t, []PromptTemplate{
		DependencyExtractionTemplate,
		JudgmentTemplate,
		RefinementTemplate,
		TestCodeTemplate,
		TestPlanTemplate,
	}, renderer.GetAvailableTemplates())
}

func TestRenderIncludesSections(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	data := &TemplateData{
		ProductionContent:      "class Calc { int add(int a, int b) }",
		Instructions:           "Cover every branch",
		ProjectContext:         "Spring Boot service",
		DependencyDescription:  "class Repository {}",
		TestPlan:               "1. adds numbers",
		TestExamples:           "@Test void example() {}",
		CurrentTestContent:     "class CalcTest {}",
		GeneratedTestContent:   "class CalcTest { @Test void add() {} }",
		RefinementInstructions: "Use AssertJ",
		TestOutput:             "BUILD SUCCESS",
	}

	tests := []struct {
		template PromptTemplate
		want     []string
	}{
		{TestPlanTemplate, []string{data.ProductionContent, data.Instructions}},
		{DependencyExtractionTemplate, []string{data.ProjectContext, data.ProductionContent}},
		{TestCodeTemplate, []string{data.DependencyDescription, data.TestPlan, data.TestExamples, data.ProductionContent, data.CurrentTestContent}},
		{RefinementTemplate, []string{data.GeneratedTestContent, data.ProductionContent, data.DependencyDescription, data.RefinementInstructions}},
		{JudgmentTemplate, []string{data.TestOutput, `"success"`, `"failure"`}},
	}

	for _, tt := range tests {
		t.Run(string(tt.template), func(t *testing.T) {
			out, err := renderer.Render(tt.template, data)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
			assert.NotContains(t, out, "{{")
		})
	}
}

func TestTestCodeTemplateFeedbackHint(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	out, err := renderer.Render(TestCodeTemplate, &TemplateData{})
	require.NoError(t, err)
	assert.Contains(t, out, "(empty)")
	assert.False(t, strings.Contains(out, "notes from the previous attempt"))

	out, err = renderer.Render(TestCodeTemplate, &TemplateData{
		CurrentTestContent: "class CalcTest {}\n// Debug Error: Code coverage did not increase.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "notes from the previous attempt")
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	_, err = renderer.Render("missing.tpl.md", nil)
	assert.Error(t, err)
}
