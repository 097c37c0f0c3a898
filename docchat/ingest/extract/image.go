package extract

import (
	"context"
	"errors"
	"fmt"
)

// OCREngine recognizes text in an encoded png or jpeg image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// ImageExtractor runs OCR. An image with no legible text is a successful, empty extraction.
type ImageExtractor struct {
	Engine OCREngine
}

func (e ImageExtractor) Extract(ctx context.Context, raw []byte) (string, error) {
	if e.Engine == nil {
		return "", newError(KindUnavailable, TypeImage, errors.New("no ocr engine configured"))
	}
	text, err := e.Engine.Recognize(ctx, raw)
	if err != nil {
		var xerr *Error
		if errors.As(err, &xerr) {
			return "", err
		}
		return "", newError(KindMalformedInput, TypeImage, fmt.Errorf("ocr: %w", err))
	}
	return text, nil
}
