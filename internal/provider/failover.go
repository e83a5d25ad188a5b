package provider

import (
	"context"
	"fmt"

	"github.com/voidspan/concierge/internal/session"
	"go.uber.org/zap"
)

// Failover walks an ordered chain of generators until one answers. The
// chain is fixed at construction; there is no per-call selection logic.
type Failover struct {
	chain  []Generator
	logger *zap.Logger
}

// NewFailover creates a failover generator over the given chain.
// The chain must not be empty.
func NewFailover(chain []Generator, logger *zap.Logger) *Failover {
	return &Failover{chain: chain, logger: logger}
}

func (f *Failover) ID() string   { return "failover" }
func (f *Failover) Name() string { return "failover chain" }

// Generate tries each generator in order, returning the first success.
func (f *Failover) Generate(ctx context.Context, query string, history []session.Turn) (string, error) {
	var lastErr error
	for _, g := range f.chain {
		text, err := g.Generate(ctx, query, history)
		if err == nil {
			return text, nil
		}
		lastErr = err
		f.logger.Warn("generator failed, trying next in chain",
			zap.String("provider", g.ID()), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: all generators failed: %v", ErrProvider, lastErr)
}
