package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router manages multiple LLM providers and falls back across them in
// registration order when the default fails.
type Router struct {
	providers map[string]Provider
	order     []string
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider to the router.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// Chat routes a chat request to the default provider, then the remaining
// providers in registration order.
func (r *Router) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary, ok := r.providers[r.defaults]
	if !ok {
		return nil, fmt.Errorf("no provider registered")
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("provider", r.defaults), zap.Error(err))

	for _, id := range r.order {
		if id == r.defaults {
			continue
		}
		resp, err = r.providers[id].Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", id), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed: %w", err)
}

// Complete sends a single-turn prompt and returns the raw text. It is the
// entry point every synthesis task uses.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chatReq := &ChatRequest{
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONOutput {
		chatReq.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	resp, err := r.Chat(ctx, chatReq)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}
