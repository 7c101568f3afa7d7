// Package extract turns invoice PDFs into plain text. The embedded text
// layer is tried first; scanned invoices without one fall back to OCR.
package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// ocrThreshold is the minimum text-layer length (trimmed) considered a
// real text layer. Below it the document is treated as a scan.
const ocrThreshold = 120

// Recognizer runs OCR over a PDF. Satisfied by *OCR.
type Recognizer interface {
	Recognize(ctx context.Context, pdfData []byte) (string, error)
}

// Extractor extracts text from PDF bytes. ocr may be nil when the host
// has no OCR tooling; scanned documents then yield whatever the text
// layer had.
type Extractor struct {
	ocr Recognizer
	log zerolog.Logger
}

func New(ocr Recognizer, log zerolog.Logger) *Extractor {
	return &Extractor{ocr: ocr, log: log}
}

// Text extracts the document text. Extraction never fails hard: a
// document nothing can be read from returns the empty string and the
// caller decides whether that is an error.
func (e *Extractor) Text(ctx context.Context, data []byte) string {
	text := textLayer(data)
	if len(strings.TrimSpace(text)) >= ocrThreshold {
		return text
	}

	if e.ocr == nil {
		return text
	}
	ocrText, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		e.log.Warn().Err(err).Msg("OCR fallback failed, keeping text layer")
		return text
	}
	// Keep whichever reading produced more text.
	if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(text)) {
		return ocrText
	}
	return text
}

// textLayer reads the PDF's embedded text. Malformed documents are
// common in the wild; the pdf library can panic on them, so the recover
// keeps extraction best-effort.
func textLayer(data []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(content)
	}
	return sb.String()
}
