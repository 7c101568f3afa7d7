package invoice

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the response from validation
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needsReview"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
}

// Validator cross-checks an extracted invoice for internal consistency.
// Extraction is lossy, so the checks report what a human reviewer should
// look at rather than rejecting the invoice outright.
type Validator struct {
	tolerance decimal.Decimal // relative tolerance (0.05 = 5%)
}

// NewValidator creates a validator with the default 5% tolerance.
func NewValidator() *Validator {
	return &Validator{tolerance: decimal.NewFromFloat(0.05)}
}

var (
	strictCUPSRe = regexp.MustCompile(`^ES[0-9]{2}[0-9A-Z]{16,22}$`)
	periodDateRe = regexp.MustCompile(`^([0-3]?\d)[/.\-]([01]?\d)[/.\-](\d{2}|\d{4})$`)
)

// Validate performs all cross-validations on extracted invoice data
func (v *Validator) Validate(inv models.InvoiceData) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	v.validateCUPS(inv, &result)
	v.validatePeriod(inv, &result)
	v.validateConsumption(inv, &result)
	v.validateAmounts(inv, &result)

	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Warnings) > 0
	return result
}

func (v *Validator) validateCUPS(inv models.InvoiceData, result *ValidationResult) {
	if inv.CUPS == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "cups",
			Code:    "cups_missing",
			Message: "No se pudo extraer el código CUPS",
		})
		return
	}
	if !strictCUPSRe.MatchString(inv.CUPS) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "cups",
			Code:    "cups_invalid_format",
			Actual:  inv.CUPS,
			Message: "CUPS debe ser ES + 2 dígitos + 16-22 caracteres alfanuméricos",
		})
	}
}

// validatePeriod checks both billing dates parse and run forwards. A
// period over 70 days is flagged: bimonthly billing tops out around 62.
func (v *Validator) validatePeriod(inv models.InvoiceData, result *ValidationResult) {
	from, fromOK := parsePeriodDate(inv.BillingPeriod.From)
	to, toOK := parsePeriodDate(inv.BillingPeriod.To)
	if !fromOK || !toOK {
		if inv.BillingPeriod.From != "" || inv.BillingPeriod.To != "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "billingPeriod",
				Code:    "period_unparseable",
				Message: "Periodo de facturación incompleto o ilegible",
			})
		}
		return
	}
	if to.Before(from) {
		result.Errors = append(result.Errors, ValidationError{
			Field:    "billingPeriod",
			Code:     "period_inverted",
			Expected: inv.BillingPeriod.From + " <= " + inv.BillingPeriod.To,
			Message:  "La fecha de fin es anterior a la de inicio",
		})
		return
	}
	if to.Sub(from) > 70*24*time.Hour {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "billingPeriod",
			Code:    "period_too_long",
			Message: "Periodo de facturación superior a 70 días",
		})
	}
}

// validateConsumption rejects negative readings and cross-checks the
// declared total against the sum of the period consumptions.
func (v *Validator) validateConsumption(inv models.InvoiceData, result *ValidationResult) {
	byPeriod := inv.ConsumptionByPeriodKwh
	sum := decimal.Zero
	haveAll := true
	for field, p := range map[string]*decimal.Decimal{"p1": byPeriod.P1, "p2": byPeriod.P2, "p3": byPeriod.P3} {
		if p == nil {
			haveAll = false
			continue
		}
		if p.IsNegative() {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "consumptionByPeriodKwh." + field,
				Code:    "consumption_negative",
				Actual:  p.String(),
				Message: "El consumo no puede ser negativo",
			})
		}
		sum = sum.Add(*p)
	}

	total := inv.EnergySummary.TotalKwh
	if total == nil {
		return
	}
	if total.IsNegative() {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "energySummary.totalKwh",
			Code:    "consumption_negative",
			Actual:  total.String(),
			Message: "El consumo total no puede ser negativo",
		})
		return
	}
	if haveAll && total.IsPositive() {
		diff := total.Sub(sum).Abs()
		if diff.GreaterThan(total.Mul(v.tolerance)) {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "energySummary.totalKwh",
				Code:    "consumption_sum_mismatch",
				Message: "El consumo total no coincide con la suma de los periodos P1+P2+P3",
			})
		}
	}
}

func (v *Validator) validateAmounts(inv models.InvoiceData, result *ValidationResult) {
	due, gross := inv.EnergySummary.AmountDueEur, inv.EnergySummary.GrossAmountEur

	for field, d := range map[string]*decimal.Decimal{
		"amountDueEur":   due,
		"grossAmountEur": gross,
	} {
		if d != nil && d.IsNegative() {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "energySummary." + field,
				Code:    "amount_negative",
				Actual:  d.String(),
				Message: "El importe no puede ser negativo",
			})
		}
	}

	// Taxes and rental services sit on top of the energy subtotal, so the
	// amount due normally exceeds it. A due amount below the subtotal
	// usually means one of the two was misread.
	if due != nil && gross != nil && due.IsPositive() && gross.IsPositive() {
		if due.LessThan(gross.Sub(gross.Mul(v.tolerance))) {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "energySummary.amountDueEur",
				Code:    "due_below_gross",
				Message: "Importe a pagar inferior al subtotal de energía",
			})
		}
	}

	if inv.EnergySummary.GrossAmountEur != nil && inv.BonusSocialEur != nil {
		if inv.BonusSocialEur.GreaterThan(*inv.EnergySummary.GrossAmountEur) {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "bonusSocialEur",
				Code:    "discount_exceeds_gross",
				Message: "El Bono Social excede el subtotal de energía",
			})
		}
	}
}

// parsePeriodDate reads the DD/MM/YYYY (or DD-MM-YY, DD.MM.YYYY) dates
// the regex extractor produces.
func parsePeriodDate(s string) (time.Time, bool) {
	m := periodDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	layout := "2/1/2006"
	if len(m[3]) == 2 {
		layout = "2/1/06"
	}
	normalized := m[1] + "/" + m[2] + "/" + m[3]
	t, err := time.Parse(layout, normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
