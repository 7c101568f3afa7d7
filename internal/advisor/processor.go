// Package advisor orchestrates the invoice pipeline: text extraction,
// regex parsing, AI completion, duplicate detection and the comparative
// analysis built on top of the session's invoices.
package advisor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/miMejorLuz/savings-advisor-service/internal/ai"
	"github.com/miMejorLuz/savings-advisor-service/internal/invoice"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// minTextLength is the shortest extracted text still worth parsing.
// Below it the document is reported as illegible.
const minTextLength = 150

// TextExtractor reads the text content of an uploaded document.
// Satisfied by extract.Extractor.
type TextExtractor interface {
	Text(ctx context.Context, data []byte) string
}

// Archive persists processed invoices. Writes are best-effort; the
// in-memory session is the source of truth.
type Archive interface {
	SaveInvoice(ctx context.Context, inv models.InvoiceData) error
	DeleteInvoice(ctx context.Context, id string) error
}

// DocumentStore keeps the original uploaded PDFs.
type DocumentStore interface {
	SaveDocument(ctx context.Context, id, filename string, data []byte) error
	DeleteDocument(ctx context.Context, id string) error
}

// Processor is the stateful invoice session. Files are processed one at
// a time: each upload's duplicate check must see the previous upload's
// result.
type Processor struct {
	extractor TextExtractor
	ai        *ai.Service
	validator *invoice.Validator
	archive   Archive       // nil when the database is down
	documents DocumentStore // nil when object storage is down
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	invoices []models.InvoiceData
	files    []models.InvoiceFile
	analysis *models.ComparativeAnalysis
	source   string // "invoices" | "manual"
}

// New creates a Processor. archive and documents may be nil; processing
// then runs without persistence.
func New(extractor TextExtractor, aiSvc *ai.Service, archive Archive, documents DocumentStore, log zerolog.Logger) *Processor {
	return &Processor{
		extractor: extractor,
		ai:        aiSvc,
		validator: invoice.NewValidator(),
		archive:   archive,
		documents: documents,
		log:       log,
		now:       time.Now,
	}
}

// ProcessFile runs one uploaded PDF through the pipeline and returns its
// final file record. Failures land in the record's status and detail;
// the method itself does not error because a bad PDF is a normal outcome.
func (p *Processor) ProcessFile(ctx context.Context, name string, data []byte) models.InvoiceFile {
	p.mu.Lock()
	defer p.mu.Unlock()

	file := newFileRecord(name, p.now())

	file.Status = models.StatusReading
	text := p.extractor.Text(ctx, data)
	if len(strings.TrimSpace(text)) < minTextLength {
		file.Status = models.StatusError
		file.Detail = "PDF con poco texto o ilegible."
		p.files = append(p.files, file)
		return file
	}

	file.Status = models.StatusAnalyzing
	final := invoice.Parse(text)
	final.ID = file.ID

	// The AI pass is expensive; run it only when the regex extraction
	// left a key field open.
	if final.CUPS == "" || final.BillingPeriod.From == "" || final.BillingPeriod.To == "" || final.EnergySummary.TotalKwh == nil {
		aiData := p.ai.ParseInvoice(ctx, text)
		final = mergeInvoices(final, aiData)
	}

	if final.CUPS == "" || final.BillingPeriod.From == "" || final.BillingPeriod.To == "" {
		file.Status = models.StatusError
		file.Detail = "Datos clave no encontrados."
		p.files = append(p.files, file)
		return file
	}

	for _, existing := range p.invoices {
		if existing.CUPS == final.CUPS && existing.BillingPeriod.From == final.BillingPeriod.From {
			file.Status = models.StatusDuplicate
			file.Detail = fmt.Sprintf("Ya existe una factura del CUPS %s con inicio %s.", final.CUPS, final.BillingPeriod.From)
			p.files = append(p.files, file)
			return file
		}
	}

	if res := p.validator.Validate(final); res.NeedsReview || !res.Valid {
		p.log.Info().Str("invoice", final.ID).
			Interface("errors", res.Errors).Interface("warnings", res.Warnings).
			Msg("invoice extracted with inconsistencies")
	}

	p.invoices = append(p.invoices, final)
	file.Status = models.StatusDone
	p.files = append(p.files, file)

	p.persist(ctx, final, name, data)
	return file
}

// newFileRecord opens the per-upload state machine. Every upload enters
// as pending and advances as the pipeline touches it.
func newFileRecord(name string, now time.Time) models.InvoiceFile {
	return models.InvoiceFile{
		ID:         uuid.NewString(),
		Name:       name,
		Status:     models.StatusPending,
		UploadedAt: now,
	}
}

// persist archives the invoice and its source document. Both writes are
// best-effort.
func (p *Processor) persist(ctx context.Context, inv models.InvoiceData, name string, data []byte) {
	if p.archive != nil {
		if err := p.archive.SaveInvoice(ctx, inv); err != nil {
			p.log.Warn().Err(err).Str("invoice", inv.ID).Msg("archiving invoice failed")
		}
	}
	if p.documents != nil {
		if err := p.documents.SaveDocument(ctx, inv.ID, name, data); err != nil {
			p.log.Warn().Err(err).Str("invoice", inv.ID).Msg("storing source document failed")
		}
	}
}

// Invoices returns a copy of the session's invoice collection.
func (p *Processor) Invoices() []models.InvoiceData {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.InvoiceData, len(p.invoices))
	copy(out, p.invoices)
	return out
}

// Files returns a copy of the upload records.
func (p *Processor) Files() []models.InvoiceFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.InvoiceFile, len(p.files))
	copy(out, p.files)
	return out
}

// Delete removes an upload and its invoice from the session and from the
// archive.
func (p *Processor) Delete(ctx context.Context, id string) {
	p.mu.Lock()
	for i, f := range p.files {
		if f.ID == id {
			p.files = append(p.files[:i], p.files[i+1:]...)
			break
		}
	}
	removed := false
	for i, inv := range p.invoices {
		if inv.ID == id {
			p.invoices = append(p.invoices[:i], p.invoices[i+1:]...)
			removed = true
			break
		}
	}
	p.mu.Unlock()

	if !removed {
		return
	}
	if p.archive != nil {
		if err := p.archive.DeleteInvoice(ctx, id); err != nil {
			p.log.Warn().Err(err).Str("invoice", id).Msg("deleting archived invoice failed")
		}
	}
	if p.documents != nil {
		if err := p.documents.DeleteDocument(ctx, id); err != nil {
			p.log.Warn().Err(err).Str("invoice", id).Msg("deleting source document failed")
		}
	}
}

// Reset clears the whole session.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoices = nil
	p.files = nil
	p.analysis = nil
	p.source = ""
}

// Analyze runs the comparative analysis over the session's invoices.
func (p *Processor) Analyze(ctx context.Context) (models.ComparativeAnalysis, error) {
	invoices := p.Invoices()
	if len(invoices) == 0 {
		return models.ComparativeAnalysis{}, fmt.Errorf("no hay facturas para analizar")
	}

	result := p.ai.ComparativeAnalysis(ctx, invoices)

	p.mu.Lock()
	p.analysis = &result
	p.source = "invoices"
	p.mu.Unlock()
	return result, nil
}

// ManualAnalysis builds a synthetic invoice from user-entered data and
// analyzes it. On success it replaces the session's invoices: manual data
// and uploaded invoices describe the same supply and must not mix.
func (p *Processor) ManualAnalysis(ctx context.Context, data models.ManualData) (models.ComparativeAnalysis, error) {
	synthetic := models.InvoiceData{
		ID:            "manual-entry",
		Provider:      data.Provider,
		Tariff:        data.Tariff,
		CUPS:          fmt.Sprintf("ES00XXMANUAL%04d", rand.Intn(10000)),
		BillingPeriod: models.BillingPeriod{From: "N/A", To: "N/A"},
		RawText:       "Entrada manual del usuario",
	}
	if data.PeakPowerKw > 0 {
		d := decimal.NewFromFloat(data.PeakPowerKw)
		synthetic.ContractedPower.P1 = &d
	}
	if data.OffPeakPowerKw > 0 {
		d := decimal.NewFromFloat(data.OffPeakPowerKw)
		synthetic.ContractedPower.P2 = &d
	}
	if data.AvgConsumptionKwh > 0 {
		d := decimal.NewFromFloat(data.AvgConsumptionKwh)
		synthetic.EnergySummary.TotalKwh = &d
	}

	result := p.ai.ComparativeAnalysis(ctx, []models.InvoiceData{synthetic})
	if result.EstimatedAnnualSavingEur == 0 && len(result.CostSimulations) == 0 {
		return models.ComparativeAnalysis{}, fmt.Errorf("la IA no pudo generar un análisis con los datos proporcionados")
	}

	p.mu.Lock()
	p.invoices = []models.InvoiceData{synthetic}
	p.files = nil
	p.analysis = &result
	p.source = "manual"
	p.mu.Unlock()
	return result, nil
}

// Analysis returns the last analysis and its source ("invoices" or
// "manual"), or nil when none has run.
func (p *Processor) Analysis() (*models.ComparativeAnalysis, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analysis, p.source
}
