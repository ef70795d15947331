package usecases

import (
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// SplitText splits text into overlapping windows of whole words.
//
// Words are maximal runs of non-whitespace. Each window holds up to size words
// joined by single spaces, and consecutive windows start size-overlap words
// apart. The last window always reaches the final word. Text without words
// yields no windows.
func SplitText(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, entities.ErrInvalidChunking
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	windows := make([]string, 0, len(words)/step+1)
	for start := 0; ; start += step {
		end := start + size
		if end >= len(words) {
			windows = append(windows, strings.Join(words[start:], " "))
			break
		}
		windows = append(windows, strings.Join(words[start:end], " "))
	}
	return windows, nil
}

// ChunkDocument splits a document into positioned chunks.
func ChunkDocument(doc entities.Document, size, overlap int) ([]entities.Chunk, error) {
	windows, err := SplitText(doc.Content, size, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]entities.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = entities.Chunk{
			Position: i,
			Content:  w,
			Source:   doc.Name,
		}
	}
	return chunks, nil
}

// chunkContents extracts the text of each chunk, in order.
func chunkContents(chunks []entities.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return texts
}
