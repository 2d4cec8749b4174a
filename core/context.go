package core

import (
	"context"

	"github.com/charmbracelet/log"
)

// Context keys for run options
type contextKey string

const runIDKey contextKey = "runID"

// withRunID sets the tracked run ID in the context
func withRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// getRunID returns the tracked run ID from context
func getRunID(ctx context.Context) (string, bool) {
	val := ctx.Value(runIDKey)
	if val == nil {
		return "", false
	}
	id, ok := val.(string)
	return id, ok
}

// log returns the assembler logger, tagged with the run ID when ctx carries one.
func (a *Assembler) log(ctx context.Context) *log.Logger {
	l := a.logger()
	if id, ok := getRunID(ctx); ok {
		return l.With("run_id", id)
	}
	return l
}
