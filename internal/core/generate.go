package core

import (
	"context"
	"log"
	"strings"
	"time"
)

const (
	answerMaxTokens      = 300
	elaborationMaxTokens = 400
)

// ModelCaller issues a single completion against one named model.
type ModelCaller interface {
	Complete(ctx context.Context, model, system, prompt string, maxTokens int32) (string, error)
}

// Generator is the fallback-chain contract the question and feedback
// services depend on.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, maxTokens int32) (answer string, usedFallback bool, err error)
}

// Engine runs the primary/secondary model chain: one attempt per model with
// its own timeout, short-circuiting on the first non-empty answer.
type Engine struct {
	caller         ModelCaller
	primaryModel   string
	secondaryModel string
	attemptTimeout time.Duration
}

func NewEngine(caller ModelCaller, primaryModel, secondaryModel string, attemptTimeout time.Duration) *Engine {
	return &Engine{
		caller:         caller,
		primaryModel:   primaryModel,
		secondaryModel: secondaryModel,
		attemptTimeout: attemptTimeout,
	}
}

// Generate returns the first non-empty answer from the model chain.
// usedFallback reports whether the secondary model produced it. When both
// attempts fail or come back empty it returns ErrProviderUnavailable, or the
// context error if the caller has gone away.
func (e *Engine) Generate(ctx context.Context, system, prompt string, maxTokens int32) (string, bool, error) {
	models := []string{e.primaryModel, e.secondaryModel}

	for i, model := range models {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		answer, err := e.caller.Complete(attemptCtx, model, system, prompt, maxTokens)
		cancel()

		if err != nil {
			log.Printf("Model %s attempt failed: %v", model, err)
			continue
		}
		if strings.TrimSpace(answer) == "" {
			log.Printf("Model %s returned an empty answer", model)
			continue
		}
		return answer, i > 0, nil
	}

	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return "", false, ErrProviderUnavailable
}
