package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
)

// Registry maps worker indexes to browser sessions on deterministic ports.
// Worker i always gets basePort+i, so a re-run after interruption reattaches
// each worker to the same browser instance and its authenticated profile.
type Registry struct {
	basePort int
	config   common.BrowserConfig
	logger   arbor.ILogger
	mu       sync.Mutex
	sessions map[int]*Session
}

// NewRegistry creates a registry handing out ports from basePort upward
func NewRegistry(config common.BrowserConfig, basePort int, logger arbor.ILogger) *Registry {
	return &Registry{
		basePort: basePort,
		config:   config,
		logger:   logger,
		sessions: make(map[int]*Session),
	}
}

// PortFor returns the debug port assigned to a worker index
func (r *Registry) PortFor(index int) int {
	return r.basePort + index
}

// Acquire returns the session for a worker index, connecting on first use.
// Port assignment never changes for the lifetime of the registry.
func (r *Registry) Acquire(ctx context.Context, index int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[index]; ok {
		return s, nil
	}

	port := r.PortFor(index)
	s, err := Connect(ctx, r.config, port, r.logger)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", index, err)
	}

	r.sessions[index] = s
	r.logger.Debug().Int("worker", index).Int("port", port).Msg("Session acquired")
	return s, nil
}

// ReleaseAll closes every session held by the registry
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for index, s := range r.sessions {
		s.Close()
		delete(r.sessions, index)
	}
	r.logger.Debug().Msg("All browser sessions released")
}
