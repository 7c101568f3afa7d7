package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// OCR recognizes text on scanned invoices by rendering PDF pages with
// pdftoppm and running tesseract over them. Only the first pages are
// processed: the data we care about is on page one, sometimes two.
type OCR struct {
	language string
	maxPages int
	log      zerolog.Logger
}

// NewOCR creates an OCR engine. language defaults to Spanish, maxPages
// to 2.
func NewOCR(language string, maxPages int, log zerolog.Logger) *OCR {
	if language == "" {
		language = "spa"
	}
	if maxPages <= 0 {
		maxPages = 2
	}
	return &OCR{language: language, maxPages: maxPages, log: log}
}

// Available reports whether the required binaries are on PATH.
func (o *OCR) Available() bool {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return false
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		return false
	}
	return true
}

// Recognize renders the leading pages of the PDF and OCRs them. Pages
// that fail individually are skipped; the call errors only when nothing
// at all could be recognized.
func (o *OCR) Recognize(ctx context.Context, pdfData []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "mml-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputFile := filepath.Join(tmpDir, "invoice.pdf")
	if err := os.WriteFile(inputFile, pdfData, 0644); err != nil {
		return "", fmt.Errorf("writing temp pdf: %w", err)
	}

	// 200 dpi is enough for invoice body text and keeps renders fast.
	render := exec.CommandContext(ctx, "pdftoppm",
		"-png", "-r", "200",
		"-f", "1", "-l", strconv.Itoa(o.maxPages),
		inputFile, filepath.Join(tmpDir, "page"))
	var renderErr bytes.Buffer
	render.Stderr = &renderErr
	if err := render.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm: %v - %s", err, strings.TrimSpace(renderErr.String()))
	}

	pages, err := filepath.Glob(filepath.Join(tmpDir, "page*.png"))
	if err != nil || len(pages) == 0 {
		return "", fmt.Errorf("pdftoppm produced no pages")
	}
	sort.Strings(pages)

	var sb strings.Builder
	for _, page := range pages {
		recognize := exec.CommandContext(ctx, "tesseract", page, "stdout", "-l", o.language)
		var out, stderr bytes.Buffer
		recognize.Stdout = &out
		recognize.Stderr = &stderr
		if err := recognize.Run(); err != nil {
			o.log.Warn().Err(err).Str("page", filepath.Base(page)).
				Str("stderr", strings.TrimSpace(stderr.String())).Msg("tesseract failed on page")
			continue
		}
		sb.WriteString("\n")
		sb.Write(out.Bytes())
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("tesseract recognized no text")
	}
	return sb.String(), nil
}
