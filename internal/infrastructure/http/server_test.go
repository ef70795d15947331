package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docqa-go/internal/adapters/knowledgebase"
	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docqa-go/internal/adapters/sessionstore"
	"github.com/0xcro3dile/docqa-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/metrics"
)

// wordEmbedder places texts by how often they mention a few fixed words.
type wordEmbedder struct{}

func (wordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	words := []string{"cat", "dog", "fish"}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(words))
		for j, w := range words {
			v[j] = float32(strings.Count(strings.ToLower(t), w))
		}
		out[i] = v
	}
	return out, nil
}

type testEnv struct {
	server  *httptest.Server
	ollama  *httptest.Server
	kbDir   string
	runtime *embedding.Runtime
	prompts chan string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{prompts: make(chan string, 16)}

	env.ollama = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		env.prompts <- req.Prompt
		if req.Stream {
			w.Write([]byte(`{"response":"It ","done":false}` + "\n"))
			w.Write([]byte(`{"response":"purrs.","done":true}` + "\n"))
			return
		}
		w.Write([]byte(`{"response":"It purrs.","done":true}`))
	}))
	t.Cleanup(env.ollama.Close)

	env.kbDir = filepath.Join(t.TempDir(), "kb")
	kb := knowledgebase.NewFolder(env.kbDir)
	require.NoError(t, kb.Ensure())

	env.runtime = embedding.NewRuntime(embedding.Static(wordEmbedder{}), false)
	require.NoError(t, env.runtime.Init(context.Background()))

	store := sessionstore.NewMemoryStore()
	gen := llm.NewOllamaLLMAdapter(env.ollama.URL, "test", 0)

	ingest, err := usecases.NewIngestUseCase(env.runtime, vectordb.BuildIndex, store, kb, 5, 1)
	require.NoError(t, err)
	query, err := usecases.NewQueryUseCase(env.runtime, vectordb.BuildIndex, store, kb, gen, 5, 1)
	require.NoError(t, err)

	srv := NewServer(query, ingest, kb, env.runtime, store, metrics.New(store.Len), Options{})
	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) upload(t *testing.T, name, content, query string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	fw.Write([]byte(content))
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+"/process"+query, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path string, v interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/health")
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["embedding_ready"])
	assert.Equal(t, 0.0, body["sessions"])
}

func TestServer_ProcessAndAsk(t *testing.T) {
	env := newTestEnv(t)

	resp := env.upload(t, "pets.txt", "the cat sleeps all day while the dog barks at fish", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Document processed successfully", body["message"])
	sessionID, _ := body["session_id"].(string)
	assert.NotEmpty(t, sessionID)
	assert.NotContains(t, body, "saved_to_kb")

	resp = env.postJSON(t, "/ask", map[string]string{"question": "what does the cat do?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode(t, resp)
	assert.Equal(t, "It purrs.", body["answer"])
	assert.Equal(t, sessionID, body["session_id"])

	prompt := <-env.prompts
	assert.True(t, strings.HasPrefix(prompt, "Use the following context to answer the question. \n"))
	assert.Contains(t, prompt, "Question: what does the cat do?")
}

func TestServer_AskWithoutDocument(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/ask", map[string]string{"question": "hello?"})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "No document has been processed. Please upload a document first.", body["detail"])
}

func TestServer_ProcessRejectsPDF(t *testing.T) {
	env := newTestEnv(t)

	resp := env.upload(t, "report.pdf", "%PDF", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Unsupported file type: .pdf. Please upload a TXT file.", body["detail"])
}

func TestServer_ProcessWithoutFile(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/process", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_ProcessNotInitialized(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.runtime.Close())

	resp := env.upload(t, "a.txt", "cat", "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, entities.ErrNotInitialized.Error(), body["detail"])
}

func TestServer_ProcessSavesToKB(t *testing.T) {
	env := newTestEnv(t)

	resp := env.upload(t, "saved.txt", "fish tank notes", "?save_to_kb=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["saved_to_kb"])

	data, err := os.ReadFile(filepath.Join(env.kbDir, "saved.txt"))
	require.NoError(t, err)
	assert.Equal(t, "fish tank notes", string(data))

	resp, err = http.Get(env.server.URL + "/kb")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, 1.0, body["count"])

	resp, err = http.Get(env.server.URL + "/kb/saved.txt")
	require.NoError(t, err)
	body = decode(t, resp)
	assert.Equal(t, "saved.txt", body["filename"])
	assert.Equal(t, "fish tank notes", body["content"])
}

func TestServer_KBFileNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/kb/missing.txt")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "File 'missing.txt' not found in knowledge base", body["detail"])
}

func TestServer_ListKBMissingFolder(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.RemoveAll(env.kbDir))

	resp, err := http.Get(env.server.URL + "/kb")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Empty(t, body["files"])
	assert.NotEmpty(t, body["message"])
}

func TestServer_AskStream(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t, "pets.txt", "cat dog fish", "")
	resp.Body.Close()

	resp = env.postJSON(t, "/ask/stream", map[string]string{"question": "cat?"})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var lines []map[string]string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line map[string]string
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	assert.Equal(t, []map[string]string{{"text": "It "}, {"text": "purrs."}}, lines)
}

func TestServer_ClearThenAsk(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", "cat", "").Body.Close()

	resp := env.postJSON(t, "/clear", nil)
	body := decode(t, resp)
	assert.Equal(t, "Session cleared successfully", body["message"])
	assert.Equal(t, 1.0, body["cleared"])

	resp = env.postJSON(t, "/ask/stream", map[string]string{"question": "cat?"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_SearchKB(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.kbDir, "cats.txt"), []byte("all about the cat"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.kbDir, "dogs.txt"), []byte("dog dog dog"), 0o644))

	resp := env.postJSON(t, "/search/kb", map[string]string{"query": "cat"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, 2.0, body["count"])
	assert.Equal(t, "cat", body["query"])
	results := body["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.Equal(t, "cats.txt", first["filename"])
	assert.Equal(t, "all about the cat", first["content_snippet"])
}

func TestServer_SearchKBEmpty(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/search/kb", map[string]string{"query": "cat"})

	body := decode(t, resp)
	assert.Equal(t, "No files found in knowledge base", body["message"])
	assert.Empty(t, body["results"])
}

func TestServer_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/ask", "application/json", strings.NewReader("{"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/ask", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/ask", map[string]string{"question": "q"}).Body.Close()

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `docqa_http_requests_total{code="404",route="POST /ask"} 1`)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{entities.UnsupportedFileType(".pdf"), http.StatusBadRequest},
		{entities.ErrNoSession, http.StatusNotFound},
		{entities.ErrNotInitialized, http.StatusServiceUnavailable},
		{&entities.UpstreamError{Op: "generate", Err: assert.AnError}, http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestWriteStream_EncodesRecords(t *testing.T) {
	ch := make(chan entities.StreamRecord, 3)
	ch <- entities.StreamRecord{Kind: entities.RecordText, Text: "partial"}
	ch <- entities.StreamRecord{Kind: entities.RecordError, Err: assert.AnError}
	close(ch)

	rec := httptest.NewRecorder()
	kind := writeStream(rec, ch)

	assert.Equal(t, entities.RecordError, kind)
	assert.Equal(t, `{"text":"partial"}`+"\n"+`{"error":"`+assert.AnError.Error()+`"}`+"\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestWriteStream_DoneHasNoLine(t *testing.T) {
	ch := make(chan entities.StreamRecord, 1)
	ch <- entities.StreamRecord{Kind: entities.RecordDone}
	close(ch)

	rec := httptest.NewRecorder()

	assert.Equal(t, entities.RecordDone, writeStream(rec, ch))
	assert.Empty(t, rec.Body.String())
}
