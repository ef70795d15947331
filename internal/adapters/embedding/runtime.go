package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var _ ports.EmbeddingRuntime = (*Runtime)(nil)

// Factory creates the embedding backend during Init.
type Factory func(ctx context.Context) (ports.EmbeddingService, error)

// Runtime owns one embedding backend for the lifetime of the process.
// Calls made before Init or after Close fail with entities.ErrNotInitialized.
type Runtime struct {
	mu      sync.RWMutex
	factory Factory
	service ports.EmbeddingService
	probe   bool
}

// NewRuntime creates an uninitialized runtime. With probe set, Init embeds a
// short text so an unreachable backend fails at start-up rather than per request.
func NewRuntime(factory Factory, probe bool) *Runtime {
	return &Runtime{factory: factory, probe: probe}
}

// Static returns a factory that always yields svc.
func Static(svc ports.EmbeddingService) Factory {
	return func(context.Context) (ports.EmbeddingService, error) {
		return svc, nil
	}
}

// Init builds the backend. A second call is a no-op.
func (r *Runtime) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.service != nil {
		return nil
	}

	svc, err := r.factory(ctx)
	if err != nil {
		return fmt.Errorf("initializing embedding backend: %w", err)
	}
	if r.probe {
		vecs, err := svc.EmbedBatch(ctx, []string{"ready"})
		if err != nil {
			return fmt.Errorf("probing embedding backend: %w", err)
		}
		if len(vecs) == 1 {
			log.Info().Int("dimension", len(vecs[0])).Msg("embedding backend ready")
		}
	}
	r.service = svc
	return nil
}

// Ready reports whether the backend is available.
func (r *Runtime) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.service != nil
}

// Close releases the backend. Further calls fail until Init runs again.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.service = nil
	return nil
}

// EmbedBatch delegates to the backend.
func (r *Runtime) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.RLock()
	svc := r.service
	r.mu.RUnlock()

	if svc == nil {
		return nil, entities.ErrNotInitialized
	}
	return svc.EmbedBatch(ctx, texts)
}
