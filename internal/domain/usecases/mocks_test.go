package usecases

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// keywords gives every test text a position in a tiny vector space.
var keywords = []string{"alpha", "beta", "gamma", "delta"}

// mockEmbedder implements ports.EmbeddingRuntime for testing.
// Each vector counts keyword occurrences in the text.
type mockEmbedder struct {
	notReady bool
	err      error
	batches  int
}

func (m *mockEmbedder) Init(context.Context) error { m.notReady = false; return nil }
func (m *mockEmbedder) Ready() bool                { return !m.notReady }
func (m *mockEmbedder) Close() error               { m.notReady = true; return nil }

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batches++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(keywords))
		for j, kw := range keywords {
			vec[j] = float32(strings.Count(strings.ToLower(text), kw))
		}
		out[i] = vec
	}
	return out, nil
}

// mockLLM implements ports.LLMService for testing.
type mockLLM struct {
	response string
	err      error
	prompts  []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) GenerateStream(_ context.Context, prompt string) <-chan entities.StreamRecord {
	m.prompts = append(m.prompts, prompt)
	ch := make(chan entities.StreamRecord, 3)
	ch <- entities.StreamRecord{Kind: entities.RecordText, Text: m.response}
	ch <- entities.StreamRecord{Kind: entities.RecordDone}
	close(ch)
	return ch
}

// mockKB implements ports.KnowledgeBase for testing.
type mockKB struct {
	files    map[string]string
	readErrs map[string]error
	missing  bool
	saved    map[string][]byte
	saveErr  error
}

func newMockKB(files map[string]string) *mockKB {
	return &mockKB{files: files, readErrs: map[string]error{}, saved: map[string][]byte{}}
}

func (m *mockKB) List(ctx context.Context) ([]entities.KBFile, error) {
	names, err := m.Names(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entities.KBFile, len(names))
	for i, n := range names {
		out[i] = entities.KBFile{Name: n, Size: int64(len(m.files[n])), Type: ".txt"}
	}
	return out, nil
}

func (m *mockKB) Read(_ context.Context, name string) (string, error) {
	if err := m.readErrs[name]; err != nil {
		return "", err
	}
	text, ok := m.files[name]
	if !ok {
		return "", entities.ErrKBFileNotFound
	}
	return text, nil
}

func (m *mockKB) Save(_ context.Context, name string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[name] = data
	return nil
}

func (m *mockKB) Names(context.Context) ([]string, error) {
	if m.missing {
		return nil, entities.ErrKBMissing
	}
	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

var errBoom = errors.New("boom")
