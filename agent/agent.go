// Package agent holds the clients for the external analysis agents. An
// agent receives a system prompt and a user message and answers with text;
// it knows nothing about failures or analyses.
package agent

import "context"

// Messages is one request to an agent.
type Messages struct {
	System string
	User   string
}

// Agent answers a single request. Implementations must honour ctx
// cancellation and must not retry on their own.
type Agent interface {
	Call(ctx context.Context, msgs Messages) (string, error)
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, msgs Messages) (string, error)

func (f Func) Call(ctx context.Context, msgs Messages) (string, error) { return f(ctx, msgs) }
