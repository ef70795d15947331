// Package usecases contains application business rules.
// Use cases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// Default chunking parameters, in words.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// SupportedExtension is the only upload type accepted.
const SupportedExtension = ".txt"

// ProcessRequest is an uploaded document.
type ProcessRequest struct {
	Filename string
	Content  []byte
	SaveToKB bool
}

// IngestUseCase turns uploaded documents into sessions.
type IngestUseCase struct {
	embedder     ports.EmbeddingRuntime
	buildIndex   ports.IndexBuilder
	sessions     ports.SessionStore
	kb           ports.KnowledgeBase
	chunkSize    int
	chunkOverlap int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// It fails when the chunking parameters cannot make progress.
func NewIngestUseCase(
	embedder ports.EmbeddingRuntime,
	buildIndex ports.IndexBuilder,
	sessions ports.SessionStore,
	kb ports.KnowledgeBase,
	chunkSize, chunkOverlap int,
) (*IngestUseCase, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, entities.ErrInvalidChunking
	}
	return &IngestUseCase{
		embedder:     embedder,
		buildIndex:   buildIndex,
		sessions:     sessions,
		kb:           kb,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Process chunks, embeds and indexes a document, then stores it as a new session.
// Nothing is stored when any step fails.
func (uc *IngestUseCase) Process(ctx context.Context, req ProcessRequest) (*entities.ProcessResult, error) {
	if !uc.embedder.Ready() {
		return nil, entities.ErrNotInitialized
	}

	name := filepath.Base(req.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != SupportedExtension {
		return nil, entities.UnsupportedFileType(ext)
	}
	if !utf8.Valid(req.Content) {
		return nil, &entities.ValidationError{Msg: "Uploaded file is not valid UTF-8 text."}
	}

	if req.SaveToKB {
		if err := uc.kb.Save(ctx, name, req.Content); err != nil {
			return nil, fmt.Errorf("saving %s to knowledge base: %w", name, err)
		}
	}

	chunks, err := ChunkDocument(entities.Document{Name: name, Content: string(req.Content)}, uc.chunkSize, uc.chunkOverlap)
	if err != nil {
		return nil, err
	}

	vectors, err := uc.embedder.EmbedBatch(ctx, chunkContents(chunks))
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	index, err := uc.buildIndex(vectors)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	session, err := uc.sessions.Create(chunks, index, name)
	if err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	log.Info().
		Str("session_id", session.ID).
		Str("filename", name).
		Int("chunks", len(chunks)).
		Bool("saved_to_kb", req.SaveToKB).
		Msg("document processed")

	return &entities.ProcessResult{
		SessionID: session.ID,
		Filename:  name,
		Chunks:    len(chunks),
		SavedToKB: req.SaveToKB,
	}, nil
}

// Clear drops every session and returns how many were removed.
func (uc *IngestUseCase) Clear() int {
	n := uc.sessions.Clear()
	log.Info().Int("cleared", n).Msg("sessions cleared")
	return n
}
