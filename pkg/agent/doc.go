// Package agent builds the LLM clients used for content synthesis. Each
// client is a provider implementation from internal/llmimpl wrapped in the
// middleware chain from middleware/.
package agent
