package extract

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTextLayerToleratesGarbage(t *testing.T) {
	assert.Equal(t, "", textLayer(nil))
	assert.Equal(t, "", textLayer([]byte("not a pdf at all")))
	// Truncated header: parsing must not panic out of the extractor.
	assert.Equal(t, "", textLayer([]byte("%PDF-1.7\n1 0 obj\n<<")))
}

func TestTextWithoutOCR(t *testing.T) {
	e := New(nil, zerolog.Nop())
	assert.Equal(t, "", e.Text(context.Background(), []byte("garbage")))
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(ctx context.Context, pdfData []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestTextKeepsLongerOCRCandidate(t *testing.T) {
	ocr := &fakeOCR{text: "FACTURA DE ELECTRICIDAD\nCUPS: ES0031405515781001JN0F\nTotal: 47,32 €"}
	e := New(ocr, zerolog.Nop())

	// No usable text layer, so the longer OCR reading wins.
	got := e.Text(context.Background(), []byte("scanned document without text layer"))
	assert.Equal(t, ocr.text, got)
	assert.Equal(t, 1, ocr.calls)
}

func TestTextKeepsTextLayerWhenOCRFails(t *testing.T) {
	ocr := &fakeOCR{err: context.DeadlineExceeded}
	e := New(ocr, zerolog.Nop())

	got := e.Text(context.Background(), []byte("garbage"))
	assert.Equal(t, "", got)
	assert.Equal(t, 1, ocr.calls)
}

func TestTextIgnoresShorterOCRCandidate(t *testing.T) {
	ocr := &fakeOCR{text: "   "}
	e := New(ocr, zerolog.Nop())

	assert.Equal(t, "", e.Text(context.Background(), []byte("garbage")))
	assert.Equal(t, 1, ocr.calls)
}
