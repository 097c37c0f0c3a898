//go:build !tesseract

package extract

import (
	"context"
	"errors"
)

// OCRAvailable reports whether image text recognition is compiled into this binary.
func OCRAvailable() bool { return false }

// unavailableOCR is compiled in when the binary is built without tesseract support.
type unavailableOCR struct{}

// DefaultOCREngine returns the OCR engine compiled into this binary.
func DefaultOCREngine() OCREngine { return unavailableOCR{} }

func (unavailableOCR) Recognize(context.Context, []byte) (string, error) {
	return "", newError(KindUnavailable, TypeImage, errors.New("built without ocr support (rebuild with -tags tesseract)"))
}
