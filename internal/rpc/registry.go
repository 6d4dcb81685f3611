// Package rpc dispatches whitelisted methods called by dotted name with a
// keyword mapping, the way /api/method/<name> exposes them.
package rpc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
)

// Args is the keyword mapping a method receives. Methods ignore keys they do not use.
type Args map[string]interface{}

// Method is a callable remote method
type Method func(ctx context.Context, args Args) (interface{}, error)

// Registry holds the whitelisted methods
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
	logger  zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		methods: make(map[string]Method),
		logger:  logger.With().Str("component", "rpc").Logger(),
	}
}

// Register whitelists fn under name
func (r *Registry) Register(name string, fn Method) error {
	if name == "" || fn == nil {
		return fmt.Errorf("method name and function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.methods[name]; exists {
		return fmt.Errorf("method %s already registered", name)
	}
	r.methods[name] = fn
	return nil
}

// Call runs the method registered under name. Unknown names are NotFoundErrors.
func (r *Registry) Call(ctx context.Context, name string, args Args) (interface{}, error) {
	r.mu.RLock()
	fn, ok := r.methods[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug().Str("method", name).Msg("Call to unknown method")
		return nil, utils.WrapNotFoundError("Method", name)
	}
	if args == nil {
		args = Args{}
	}

	result, err := fn(ctx, args)
	if err != nil {
		r.logger.Debug().Err(err).Str("method", name).Msg("Method failed")
		return nil, err
	}
	return result, nil
}

// Methods lists the registered method names, sorted
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
