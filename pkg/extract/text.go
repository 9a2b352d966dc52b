package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
)

// TextParser handles pre-extracted plain text uploads.
type TextParser struct{}

func (p *TextParser) SupportedTypes() []string { return []string{"text/plain"} }

func (p *TextParser) Parse(ctx context.Context, path string) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8 text", apperrors.ErrMalformedDocument)
	}
	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", apperrors.ErrNoTextFound
	}
	return out, nil
}
