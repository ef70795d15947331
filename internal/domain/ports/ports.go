// Package ports defines the interfaces use cases depend on.
// Adapters implement them; use cases never import adapters.
package ports

import (
	"context"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// EmbeddingService turns text into fixed-dimension vectors.
type EmbeddingService interface {
	// EmbedBatch returns one vector per input text, in input order.
	// A single query is embedded as a batch of one.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingRuntime is an EmbeddingService with an explicit lifecycle.
type EmbeddingRuntime interface {
	EmbeddingService

	// Init makes the capability available. Calling it again is a no-op.
	Init(ctx context.Context) error

	// Ready reports whether Init has completed and Close has not been called.
	Ready() bool

	// Close releases the capability.
	Close() error
}

// IndexBuilder builds an immutable index over vectors, position i for vector i.
type IndexBuilder func(vectors [][]float32) (entities.SearchIndex, error)

// LLMService generates text from the generative backend.
type LLMService interface {
	// Generate blocks until the full answer is available.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream returns the incremental output. The channel delivers text
	// records, then exactly one terminal record, then closes.
	GenerateStream(ctx context.Context, prompt string) <-chan entities.StreamRecord
}

// SessionStore keeps ingested documents addressable by id.
type SessionStore interface {
	// Create inserts a new session and returns it with a fresh id.
	Create(chunks []entities.Chunk, index entities.SearchIndex, filename string) (*entities.Session, error)

	// Get looks a session up by id.
	Get(id string) (*entities.Session, error)

	// Latest returns the most recently created session.
	// Legacy default for callers that do not track session ids.
	Latest() (*entities.Session, error)

	// Clear removes every session and returns how many were removed.
	Clear() int

	// Len returns the number of live sessions.
	Len() int
}

// KnowledgeBase is the folder of persisted text files.
type KnowledgeBase interface {
	// List returns metadata for every supported file.
	List(ctx context.Context) ([]entities.KBFile, error)

	// Read returns the text of one file.
	Read(ctx context.Context, name string) (string, error)

	// Save stores a verbatim copy of data under name.
	Save(ctx context.Context, name string, data []byte) error

	// Names returns the supported files in search order.
	Names(ctx context.Context) ([]string, error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "create"
	case FileModified:
		return "write"
	case FileDeleted:
		return "remove"
	default:
		return "unknown"
	}
}
