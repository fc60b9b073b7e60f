package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure DocumentWriter implements the interface.
var _ driven.DocumentWriter = (*DocumentWriter)(nil)

// DocumentWriter stores each conversation as <dir>/<participant>.json.
type DocumentWriter struct {
	dir string
}

// NewDocumentWriter creates a writer rooted at dir. The directory is
// created on first write.
func NewDocumentWriter(dir string) *DocumentWriter {
	return &DocumentWriter{dir: dir}
}

// Dir returns the output directory.
func (w *DocumentWriter) Dir() string {
	return w.dir
}

// Path returns the document path for a participant.
func (w *DocumentWriter) Path(participantID string) string {
	return filepath.Join(w.dir, participantID+".json")
}

// WriteDocument encodes conv as an indented JSON array of {role, content}.
// Identical conversations produce byte-identical files.
func (w *DocumentWriter) WriteDocument(ctx context.Context, participantID string, conv domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateParticipantID(participantID); err != nil {
		return err
	}

	data, err := EncodeDocument(conv)
	if err != nil {
		return fmt.Errorf("encode document for %s: %w", participantID, err)
	}

	return writeAtomic(w.Path(participantID), func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("write document for %s: %w", participantID, err)
		}
		return nil
	})
}

// EncodeDocument returns the on-disk form of a conversation. Non-ASCII text
// and HTML characters are kept as-is.
func EncodeDocument(conv domain.Conversation) ([]byte, error) {
	if conv == nil {
		conv = domain.Conversation{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(conv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
