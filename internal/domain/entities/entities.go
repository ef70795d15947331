// Package entities contains core business entities.
// These are pure domain objects with no knowledge of storage, transport or models.
package entities

import (
	"time"
)

// Document is an uploaded text and the name it arrived under.
// It only lives for the duration of an ingestion.
type Document struct {
	Name    string
	Content string
}

// Chunk is a window over a document's word sequence.
type Chunk struct {
	Position int    // Sequence position within the source document, 0-based and contiguous
	Content  string // Words of the window joined by single spaces
	Source   string // Name of the source document
}

// Hit is a single nearest-neighbour result.
type Hit struct {
	Position int     // Index position, equal to the chunk position
	Distance float64 // Squared Euclidean distance to the query
}

// SearchIndex is the read side of an immutable vector index.
type SearchIndex interface {
	Search(query []float32, topK int) ([]Hit, error)
	Size() int
}

// Session is the result of ingesting one document.
// Chunks and Index are aligned: index position i is chunk i.
type Session struct {
	ID        string
	Filename  string
	Chunks    []Chunk
	Index     SearchIndex
	CreatedAt time.Time
}

// ChunkTexts returns the chunk contents for the given hits, in hit order.
func (s *Session) ChunkTexts(hits []Hit) []string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(s.Chunks) {
			continue
		}
		texts = append(texts, s.Chunks[h.Position].Content)
	}
	return texts
}

// ProcessResult reports a completed ingestion.
type ProcessResult struct {
	SessionID string
	Filename  string
	Chunks    int
	SavedToKB bool
}

// Answer is the result of a blocking ask.
type Answer struct {
	Text      string
	SessionID string
	Sources   []Hit
}

// KBFile describes a file stored in the knowledge base folder.
type KBFile struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"-"`
	Type         string    `json:"type"`
}

// FileOutcome is the result of searching one knowledge base file.
// Exactly one of Snippet or Err is meaningful.
type FileOutcome struct {
	Filename string
	Snippet  string
	Err      error
}

// OK reports whether the file produced a snippet.
func (o FileOutcome) OK() bool {
	return o.Err == nil
}

// KBSearchResult aggregates the per-file outcomes of a knowledge base search.
type KBSearchResult struct {
	Query    string
	Outcomes []FileOutcome
	Message  string // Set when there was nothing to search
}

// Matches returns the successful outcomes in search order.
func (r *KBSearchResult) Matches() []FileOutcome {
	var out []FileOutcome
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Failures returns the outcomes that were skipped because of an error.
func (r *KBSearchResult) Failures() []FileOutcome {
	var out []FileOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// RecordKind distinguishes stream records.
type RecordKind int

const (
	RecordText RecordKind = iota
	RecordError
	RecordDone
)

func (k RecordKind) String() string {
	switch k {
	case RecordText:
		return "text"
	case RecordError:
		return "error"
	case RecordDone:
		return "done"
	default:
		return "unknown"
	}
}

// StreamRecord is one item of an incremental generation stream.
type StreamRecord struct {
	Kind RecordKind
	Text string // Delta for RecordText
	Err  error  // Cause for RecordError
}

// Terminal reports whether no record can follow this one.
func (r StreamRecord) Terminal() bool {
	return r.Kind == RecordDone || r.Kind == RecordError
}
