package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// Retrieval parameters.
const (
	AskTopK      = 3
	KBSearchTopK = 1
	SnippetRunes = 200
)

const promptTemplate = `Use the following context to answer the question. 
If the answer is not contained within the context, say "I don't have enough information to answer that question."

Context:
%s

Question: %s

Answer:`

// AskRequest is a question about a processed document.
// An empty SessionID selects the most recently processed document.
type AskRequest struct {
	Question  string
	SessionID string
}

// QueryUseCase answers questions against sessions and searches the knowledge base.
type QueryUseCase struct {
	embedder     ports.EmbeddingRuntime
	buildIndex   ports.IndexBuilder
	sessions     ports.SessionStore
	kb           ports.KnowledgeBase
	llm          ports.LLMService
	chunkSize    int
	chunkOverlap int
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingRuntime,
	buildIndex ports.IndexBuilder,
	sessions ports.SessionStore,
	kb ports.KnowledgeBase,
	llm ports.LLMService,
	chunkSize, chunkOverlap int,
) (*QueryUseCase, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, entities.ErrInvalidChunking
	}
	return &QueryUseCase{
		embedder:     embedder,
		buildIndex:   buildIndex,
		sessions:     sessions,
		kb:           kb,
		llm:          llm,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// BuildPrompt interpolates the retrieved chunks and the question into the prompt template.
func BuildPrompt(question string, contextChunks []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(contextChunks, "\n\n"), question)
}

// Assemble retrieves the topK chunks closest to question and builds the prompt.
func (uc *QueryUseCase) Assemble(ctx context.Context, question string, session *entities.Session, topK int) (string, []entities.Hit, error) {
	query, err := uc.embedOne(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := session.Index.Search(query, topK)
	if err != nil {
		return "", nil, fmt.Errorf("searching index: %w", err)
	}

	return BuildPrompt(question, session.ChunkTexts(hits)), hits, nil
}

// Ask answers a question with a single blocking generation call.
func (uc *QueryUseCase) Ask(ctx context.Context, req AskRequest) (*entities.Answer, error) {
	session, prompt, hits, err := uc.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := uc.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &entities.Answer{
		Text:      answer,
		SessionID: session.ID,
		Sources:   hits,
	}, nil
}

// AskStream answers a question incrementally. Failures before generation starts
// are returned directly; later failures arrive as an error record on the channel.
func (uc *QueryUseCase) AskStream(ctx context.Context, req AskRequest) (<-chan entities.StreamRecord, string, error) {
	session, prompt, _, err := uc.prepare(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return uc.llm.GenerateStream(ctx, prompt), session.ID, nil
}

func (uc *QueryUseCase) prepare(ctx context.Context, req AskRequest) (*entities.Session, string, []entities.Hit, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, "", nil, &entities.ValidationError{Msg: "Question must not be empty."}
	}
	if !uc.embedder.Ready() {
		return nil, "", nil, entities.ErrNotInitialized
	}

	session, err := uc.session(req.SessionID)
	if err != nil {
		return nil, "", nil, err
	}

	prompt, hits, err := uc.Assemble(ctx, req.Question, session, AskTopK)
	if err != nil {
		return nil, "", nil, err
	}
	return session, prompt, hits, nil
}

func (uc *QueryUseCase) session(id string) (*entities.Session, error) {
	if id != "" {
		return uc.sessions.Get(id)
	}
	return uc.sessions.Latest()
}

// SearchKnowledgeBase finds the best matching chunk of every knowledge base file.
//
// Each file is chunked, embedded and indexed on the fly. A file that cannot be
// processed is recorded as a failed outcome and the search continues; files
// without any words produce no outcome.
func (uc *QueryUseCase) SearchKnowledgeBase(ctx context.Context, query string) (*entities.KBSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &entities.ValidationError{Msg: "Query must not be empty."}
	}
	if !uc.embedder.Ready() {
		return nil, entities.ErrNotInitialized
	}

	result := &entities.KBSearchResult{Query: query, Outcomes: []entities.FileOutcome{}}

	names, err := uc.kb.Names(ctx)
	if errors.Is(err, entities.ErrKBMissing) {
		result.Message = "Knowledge base folder not found"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing knowledge base: %w", err)
	}
	if len(names) == 0 {
		result.Message = "No files found in knowledge base"
		return result, nil
	}

	queryVec, err := uc.embedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snippet, ok, err := uc.searchFile(ctx, name, queryVec)
		if err != nil {
			err = &entities.PerFileError{Filename: name, Err: err}
			log.Warn().Err(err).Str("filename", name).Msg("skipping knowledge base file")
			result.Outcomes = append(result.Outcomes, entities.FileOutcome{Filename: name, Err: err})
			continue
		}
		if !ok {
			continue
		}
		result.Outcomes = append(result.Outcomes, entities.FileOutcome{Filename: name, Snippet: snippet})
	}

	log.Debug().
		Str("query", query).
		Int("matches", len(result.Matches())).
		Int("skipped", len(result.Failures())).
		Msg("knowledge base searched")

	return result, nil
}

// searchFile returns the snippet of the chunk closest to queryVec.
// ok is false when the file has no chunks.
func (uc *QueryUseCase) searchFile(ctx context.Context, name string, queryVec []float32) (string, bool, error) {
	text, err := uc.kb.Read(ctx, name)
	if err != nil {
		return "", false, err
	}

	chunks, err := ChunkDocument(entities.Document{Name: name, Content: text}, uc.chunkSize, uc.chunkOverlap)
	if err != nil {
		return "", false, err
	}
	if len(chunks) == 0 {
		return "", false, nil
	}

	vectors, err := uc.embedder.EmbedBatch(ctx, chunkContents(chunks))
	if err != nil {
		return "", false, fmt.Errorf("embedding chunks: %w", err)
	}
	index, err := uc.buildIndex(vectors)
	if err != nil {
		return "", false, fmt.Errorf("building index: %w", err)
	}

	hits, err := index.Search(queryVec, KBSearchTopK)
	if err != nil {
		return "", false, fmt.Errorf("searching index: %w", err)
	}
	if len(hits) == 0 || hits[0].Position >= len(chunks) {
		return "", false, nil
	}

	return Snippet(chunks[hits[0].Position].Content, SnippetRunes), true, nil
}

// Snippet shortens s to at most limit runes, marking the cut with "...".
func Snippet(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func (uc *QueryUseCase) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := uc.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("got %d vectors for one text", len(vecs))
	}
	return vecs[0], nil
}
