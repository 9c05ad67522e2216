package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// UsageMetrics is aggregated LLM token usage and cost.
type UsageMetrics struct {
	Model            string  `json:"model,omitempty"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost_usd"`
}

// QueryService reads testgen LLM metrics back from a Prometheus server that
// scrapes them, e.g. through node_exporter's textfile collector.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a query service for the Prometheus server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// GetUsage returns usage summed over every model. selector is an optional
// label matcher list such as `operation="test-code"`.
func (q *QueryService) GetUsage(ctx context.Context, selector string) (*UsageMetrics, error) {
	usage := &UsageMetrics{}
	if err := q.fill(ctx, usage, selector); err != nil {
		return nil, err
	}
	return usage, nil
}

// GetUsageByModel returns usage per model, sorted by model name.
func (q *QueryService) GetUsageByModel(ctx context.Context, selector string) ([]*UsageMetrics, error) {
	result, _, err := q.queryAPI.Query(ctx, fmt.Sprintf(`group by (model) (testgen_llm_tokens_total%s)`, braces(selector)), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	var models []string
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if name, ok := sample.Metric["model"]; ok {
				models = append(models, string(name))
			}
		}
	}
	sort.Strings(models)

	usages := make([]*UsageMetrics, 0, len(models))
	for _, name := range models {
		usage := &UsageMetrics{Model: name}
		if err := q.fill(ctx, usage, joinSelector(selector, fmt.Sprintf("model=%q", name))); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		usages = append(usages, usage)
	}
	return usages, nil
}

func (q *QueryService) fill(ctx context.Context, usage *UsageMetrics, selector string) error {
	prompt, err := q.sum(ctx, fmt.Sprintf(`sum(testgen_llm_tokens_total%s)`, braces(joinSelector(selector, `type="prompt"`))))
	if err != nil {
		return fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	completion, err := q.sum(ctx, fmt.Sprintf(`sum(testgen_llm_tokens_total%s)`, braces(joinSelector(selector, `type="completion"`))))
	if err != nil {
		return fmt.Errorf("failed to query completion tokens: %w", err)
	}
	cost, err := q.sum(ctx, fmt.Sprintf(`sum(testgen_llm_costs_total%s)`, braces(selector)))
	if err != nil {
		return fmt.Errorf("failed to query total cost: %w", err)
	}

	usage.PromptTokens = int64(prompt)
	usage.CompletionTokens = int64(completion)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	usage.TotalCost = cost
	return nil
}

func (q *QueryService) sum(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}

func joinSelector(selector, matcher string) string {
	if selector == "" {
		return matcher
	}
	return selector + ", " + matcher
}

func braces(selector string) string {
	if selector == "" {
		return ""
	}
	return "{" + selector + "}"
}
