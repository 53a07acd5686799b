package windowing

import (
	"sync"

	"github.com/blazeiburgess/WaoN/logging"
)

type cacheKey struct {
	kind Kind
	size int
}

// Generator hands out windows, computing each (kind, size) table once.
// Returned windows are shared and must be treated as read-only.
type Generator struct {
	mu    sync.Mutex
	cache map[cacheKey]*Window
}

// NewGenerator creates a new window generator
func NewGenerator() *Generator {
	return &Generator{
		cache: make(map[cacheKey]*Window),
	}
}

// Get returns the cached window for kind and size, generating it on first use.
func (g *Generator) Get(kind Kind, size int) (*Window, error) {
	key := cacheKey{kind: kind, size: size}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.cache[key]; ok {
		return cached, nil
	}

	logger := logging.WithFields(logging.Fields{
		"component": "window_generator",
	})

	w, err := New(kind, size)
	if err != nil {
		logger.Error(err, "Failed to generate window", logging.Fields{
			"window": kind.String(),
			"size":   size,
		})
		return nil, err
	}

	logger.Debug("Window generated", logging.Fields{
		"window": kind.String(),
		"size":   size,
		"den":    w.Den,
	})

	g.cache[key] = w
	return w, nil
}

var defaultGenerator = NewGenerator()

// Shared returns the window for kind and size from the process-wide cache.
func Shared(kind Kind, size int) (*Window, error) {
	return defaultGenerator.Get(kind, size)
}
