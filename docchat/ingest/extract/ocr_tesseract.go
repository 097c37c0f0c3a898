//go:build tesseract

package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR recognizes text with libtesseract. A client is created per call since
// gosseract clients are not safe for concurrent use.
type TesseractOCR struct {
	Languages []string
}

// OCRAvailable reports whether image text recognition is compiled into this binary.
func OCRAvailable() bool { return true }

// DefaultOCREngine returns the OCR engine compiled into this binary.
func DefaultOCREngine() OCREngine { return TesseractOCR{Languages: []string{"eng"}} }

func (t TesseractOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", newError(KindUnavailable, TypeImage, fmt.Errorf("set language: %w", err))
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", newError(KindMalformedInput, TypeImage, fmt.Errorf("load image: %w", err))
	}
	text, err := client.Text()
	if err != nil {
		return "", newError(KindMalformedInput, TypeImage, fmt.Errorf("recognize: %w", err))
	}
	return text, nil
}
