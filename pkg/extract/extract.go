// Package extract turns uploaded binary documents into plain text. The
// upload is staged into a scoped temporary file for the duration of the
// parse and removed on every exit path, so repeated failures cannot leak
// temporary storage.
package extract

import (
	"context"
	"fmt"
	"mime"
	"os"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
)

// Parser extracts plain text from a staged document file.
type Parser interface {
	SupportedTypes() []string
	Parse(ctx context.Context, path string) (string, error)
}

// Extractor dispatches to a parser by media type.
type Extractor struct {
	parsers map[string]Parser
}

// NewExtractor returns an extractor with the built-in parsers registered.
func NewExtractor() *Extractor {
	e := &Extractor{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &TextParser{}} {
		for _, mt := range p.SupportedTypes() {
			e.parsers[mt] = p
		}
	}
	return e
}

// Register adds or replaces the parser for a media type.
func (e *Extractor) Register(mediaType string, p Parser) {
	e.parsers[mediaType] = p
}

// Extract writes the document to a temporary file, parses it, and returns
// the recovered text.
//
// Error kinds: ErrMalformedDocument when the bytes cannot be parsed as the
// declared type (hard failure), ErrNoTextFound when parsing succeeded but
// recovered nothing (soft — the caller may proceed with empty text).
func (e *Extractor) Extract(ctx context.Context, document []byte, mediaType string) (string, error) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return "", fmt.Errorf("%w: media type %q", apperrors.ErrInvalidInput, mediaType)
	}
	parser, ok := e.parsers[mt]
	if !ok {
		return "", fmt.Errorf("%w: unsupported media type %q", apperrors.ErrInvalidInput, mt)
	}

	tmp, err := os.CreateTemp("", "contract-upload-*"+extensionFor(mt))
	if err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(document); err != nil {
		tmp.Close()
		return "", fmt.Errorf("staging upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}

	return parser.Parse(ctx, tmp.Name())
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	default:
		return ".txt"
	}
}

// ctxErr maps context termination to the pipeline's error kinds.
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctx.Err())
		}
		return ctx.Err()
	default:
		return nil
	}
}
