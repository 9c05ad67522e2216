package metrics

import (
	"sort"
	"sync"
	"time"
)

// UsageRecorder aggregates token usage and cost per operation in memory.
// It backs the end-of-run usage summary.
type UsageRecorder struct {
	mu         sync.RWMutex
	operations map[string]*OperationUsage
	throttles  int64
}

// OperationUsage is the aggregated usage of one operation, e.g. "test-code".
type OperationUsage struct {
	Operation        string    `json:"operation"`
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	RequestCount     int64     `json:"request_count"`
	FailedCount      int64     `json:"failed_count"`
	TotalCost        float64   `json:"total_cost_usd"`
	LastUpdated      time.Time `json:"last_updated"`
}

// NewUsageRecorder returns an empty usage recorder.
func NewUsageRecorder() *UsageRecorder {
	return &UsageRecorder{operations: make(map[string]*OperationUsage)}
}

// ObserveRequest records a completed LLM request.
func (r *UsageRecorder) ObserveRequest(
	model, operation string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	_ string,
	_ time.Duration,
) {
	r.mu.Lock()
	defer r.mu.Unlock()

	usage, exists := r.operations[operation]
	if !exists {
		usage = &OperationUsage{Operation: operation}
		r.operations[operation] = usage
	}
	usage.Model = model
	usage.RequestCount++
	usage.LastUpdated = time.Now()
	if !success {
		usage.FailedCount++
		return
	}
	usage.PromptTokens += int64(promptTokens)
	usage.CompletionTokens += int64(completionTokens)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	usage.TotalCost += cost
}

// IncThrottle counts throttling events.
func (r *UsageRecorder) IncThrottle(_, _ string) {
	r.mu.Lock()
	r.throttles++
	r.mu.Unlock()
}

// ObserveQueueWait is a no-op; queue waits are only exported to Prometheus.
func (r *UsageRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

// Snapshot returns a copy of the per-operation usage sorted by operation name.
func (r *UsageRecorder) Snapshot() []OperationUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OperationUsage, 0, len(r.operations))
	for _, usage := range r.operations {
		out = append(out, *usage)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Totals sums usage over every operation.
func (r *UsageRecorder) Totals() OperationUsage {
	total := OperationUsage{Operation: "total"}
	for _, usage := range r.Snapshot() {
		total.PromptTokens += usage.PromptTokens
		total.CompletionTokens += usage.CompletionTokens
		total.RequestCount += usage.RequestCount
		total.FailedCount += usage.FailedCount
		total.TotalCost += usage.TotalCost
		if usage.LastUpdated.After(total.LastUpdated) {
			total.LastUpdated = usage.LastUpdated
		}
	}
	total.TotalTokens = total.PromptTokens + total.CompletionTokens
	return total
}

// Throttles returns the number of throttling events observed.
func (r *UsageRecorder) Throttles() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.throttles
}

// Reset clears all recorded usage.
func (r *UsageRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = make(map[string]*OperationUsage)
	r.throttles = 0
}
