package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

type streamLine struct {
	Text  *string `json:"text,omitempty"`
	Error *string `json:"error,omitempty"`
}

// encodeRecord returns the NDJSON line for rec, or nil when rec has no wire form.
func encodeRecord(rec entities.StreamRecord) []byte {
	var line streamLine
	switch rec.Kind {
	case entities.RecordText:
		line.Text = &rec.Text
	case entities.RecordError:
		msg := "stream failed"
		if rec.Err != nil {
			msg = rec.Err.Error()
		}
		line.Error = &msg
	default:
		return nil
	}
	b, err := json.Marshal(line)
	if err != nil {
		return nil
	}
	return append(b, '\n')
}

// writeStream copies records to w one line each, flushing after every line.
// It drains the channel and returns the terminal kind. A channel that closes
// without a terminal record is reported as an error.
func writeStream(w http.ResponseWriter, records <-chan entities.StreamRecord) entities.RecordKind {
	flusher, _ := w.(http.Flusher)
	terminal := entities.RecordError
	writeFailed := false

	for rec := range records {
		if rec.Terminal() {
			terminal = rec.Kind
		}
		if writeFailed {
			continue
		}
		line := encodeRecord(rec)
		if line == nil {
			continue
		}
		if _, err := w.Write(line); err != nil {
			log.Debug().Err(err).Msg("client went away during stream")
			writeFailed = true
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return terminal
}
