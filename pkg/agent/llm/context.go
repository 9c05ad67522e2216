package llm

import "context"

type ctxKey struct{}

// WithOperation tags ctx with the name of the operation a request serves
// (for example "test-plan"). Middleware uses it as a metrics label.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ctxKey{}, operation)
}

// OperationFrom returns the operation set by WithOperation, or "unknown".
func OperationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(ctxKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}
