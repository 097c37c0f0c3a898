package extract

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor decodes UTF-8 text. Any invalid byte sequence rejects the whole document.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", newError(KindDecodeError, TypeText, fmt.Errorf("invalid utf-8 at byte %d", invalidOffset(raw)))
	}
	return string(raw), nil
}

func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
