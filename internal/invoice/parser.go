// Package invoice extracts structured data from Spanish electricity
// invoice text. The regex pass here is the cheap first stage; whatever it
// cannot resolve is handed to the AI extractor and merged afterwards.
package invoice

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// Known Spanish electricity retailers, checked as case-insensitive
// substrings. Order matters only for ties; first match wins.
var providerList = []string{
	"Repsol", "Endesa", "Iberdrola", "Naturgy", "TotalEnergies", "Holaluz",
	"Acciona", "EDP", "Octopus", "Baser", "CHC", "Factorenergia", "Lucera",
}

var (
	periodoRe = regexp.MustCompile(`(?i)Periodo(?:\s+de\s+Facturaci[óo]n)?[:\s]*(?:del\s*)?([0-3]?\d[/.\-][01]?\d[/.\-](?:\d{2}|\d{4}))\s*(?:a|al|–|-)\s*([0-3]?\d[/.\-][01]?\d[/.\-](?:\d{2}|\d{4}))`)

	totalImporteRe = regexp.MustCompile(`(?i)(?:Importe\s+a\s+pagar|Total\s+(?:importe\s+)?a\s+pagar)[^\d]*(\d+[.,]?\d*)\s*€?`)
	totalFacturaRe = regexp.MustCompile(`(?i)Total\s+(?:factura|importe\s+factura)[^\d]*(\d+[.,]?\d*)\s*€`)
	totalEnergiaRe = regexp.MustCompile(`(?i)(?:Total\s+energ[ií]a|Energ[ií]a\s+total)[^\d]*(\d+[.,]?\d*)\s*€`)
	totalKwhRe     = regexp.MustCompile(`(?i)(?:Consumo\s+(?:total|en\s+este\s+periodo|del\s+periodo)|Energ[ií]a\s+(?:consumida|facturada))[^\d]*(\d+[.,]?\d*)\s*kWh`)

	puntaRe = regexp.MustCompile(`(?i)(?:P1|Punta)[^\d]{0,60}(\d+[.,]?\d*)\s*kWh`)
	llanoRe = regexp.MustCompile(`(?i)(?:P2|Llano)[^\d]{0,60}(\d+[.,]?\d*)\s*kWh`)
	valleRe = regexp.MustCompile(`(?i)(?:P3|Valle)[^\d]{0,60}(\d+[.,]?\d*)\s*kWh`)

	cupsRe    = regexp.MustCompile(`(?i)ES[0-9]{2}[0-9A-Z]{16,22}`)
	cupsURLRe = regexp.MustCompile(`(?i)cups=\s*(ES[0-9]{2}[0-9A-Z]{16,22})`)

	servicesRe    = regexp.MustCompile(`(?i)(?:Servicios|Alquiler de Equipos|Endesa X)[^\n]{0,140}?(\d+[.,]?\d*)\s*€`)
	bonoSocialRe  = regexp.MustCompile(`(?i)Bono\s+Social[^-\d\n]*(-?\d+[.,]\d*)`)
	compensRe     = regexp.MustCompile(`(?i)Compensaci[oó]n\s+(?:simplificada\s+de\s+excedentes|excedentes)[^-\d\n]*(-?\d+[.,]\d*)`)
	virtualBatRe  = regexp.MustCompile(`(?i)Bater[ií]a\s+Virtual[^-\d\n]*(-?\d+[.,]\d*)`)

	pvpcRe        = regexp.MustCompile(`(?i)pvpc`)
	tariffLabelRe = regexp.MustCompile(`(?i)(?:Tarifa|Peaje\s+de\s+acceso|Contrato\s+de\s+acceso)\s*:\s*([^\n\r]+)`)
	tariff20TDRe  = regexp.MustCompile(`(?i)2\.0\s?TD`)
	tariffTDRe    = regexp.MustCompile(`(?i)[23]\.0\s?TD`)
	fixedNameRe   = regexp.MustCompile(`(?i)fija|plana|estable|única`)
	fixedTextRe   = regexp.MustCompile(`(?i)Única|Fija|Estable`)

	stripSpaceDashRe = regexp.MustCompile(`[\s-]`)
)

// ParseEuroNumber reads a Spanish-formatted amount: "." is a thousands
// separator, "," is the decimal separator. Returns nil when the input
// does not parse as a number. "1.234,56" → 1234.56, "45" → 45.
func ParseEuroNumber(raw string) *decimal.Decimal {
	cleaned := strings.NewReplacer(".", "", " ", "", " ", "", ",", ".").Replace(raw)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &d
}

// Parse runs every field extractor over the invoice text and returns a
// fresh InvoiceData. Missing fields stay nil/empty: absence means "not
// extracted", never zero.
func Parse(text string) models.InvoiceData {
	return models.InvoiceData{
		ID:                      uuid.NewString(),
		Provider:                parseProvider(text),
		Tariff:                  parseTariff(text),
		CUPS:                    parseCUPS(text),
		BillingPeriod:           parseBillingPeriod(text),
		InvoiceNumber:           "N/A",
		ServicesAmountEur:       matchAmount(servicesRe, text),
		BonusSocialEur:          matchDiscount(bonoSocialRe, text),
		CompensationTotalEur:    matchDiscount(compensRe, text),
		VirtualBatterySavingEur: matchDiscount(virtualBatRe, text),
		ConsumptionByPeriodKwh:  parseConsumptionByPeriod(text),
		EnergySummary:           parseTotals(text),
		RawText:                 text,
	}
}

func parseProvider(text string) string {
	lower := strings.ToLower(text)
	for _, p := range providerList {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

// parseCUPS tries, in order: a window around a "cups" label, a cups= URL
// parameter, then a scan over the text with whitespace and dashes removed
// (invoices often wrap or hyphenate the code). Always uppercased.
func parseCUPS(text string) string {
	if idx := strings.Index(strings.ToLower(text), "cups"); idx >= 0 {
		lo, hi := idx-160, idx+160
		if lo < 0 {
			lo = 0
		}
		if hi > len(text) {
			hi = len(text)
		}
		if m := cupsRe.FindString(text[lo:hi]); m != "" {
			return strings.ToUpper(m)
		}
	}
	if m := cupsURLRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	linear := stripSpaceDashRe.ReplaceAllString(text, "")
	if m := cupsRe.FindString(linear); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

func parseBillingPeriod(text string) models.BillingPeriod {
	if m := periodoRe.FindStringSubmatch(text); m != nil {
		return models.BillingPeriod{From: m[1], To: m[2]}
	}
	return models.BillingPeriod{}
}

func parseConsumptionByPeriod(text string) models.ConsumptionByPeriod {
	return models.ConsumptionByPeriod{
		P1: matchAmount(puntaRe, text),
		P2: matchAmount(llanoRe, text),
		P3: matchAmount(valleRe, text),
	}
}

// parseTotals prefers the explicit energy subtotal over the invoice
// total for the gross figure. Total kWh is read directly when printed,
// otherwise derived as the sum of the period consumptions, but only when
// that sum is positive (all-missing periods must not yield a zero total).
func parseTotals(text string) models.EnergySummary {
	gross := matchAmount(totalEnergiaRe, text)
	if gross == nil {
		gross = matchAmount(totalFacturaRe, text)
	}
	due := matchAmount(totalImporteRe, text)

	totalKwh := matchAmount(totalKwhRe, text)
	if totalKwh == nil {
		byPeriod := parseConsumptionByPeriod(text)
		sum := decimal.Zero
		for _, p := range []*decimal.Decimal{byPeriod.P1, byPeriod.P2, byPeriod.P3} {
			if p != nil {
				sum = sum.Add(*p)
			}
		}
		if sum.IsPositive() {
			rounded := sum.Round(3)
			totalKwh = &rounded
		}
	}

	return models.EnergySummary{
		AmountDueEur:   due,
		GrossAmountEur: gross,
		TotalAmountEur: due,
		TotalKwh:       totalKwh,
	}
}

func parseTariff(text string) string {
	if pvpcRe.MatchString(text) {
		return "PVPC"
	}
	if m := tariffLabelRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		switch {
		case tariff20TDRe.MatchString(name):
			return "2.0TD"
		case fixedNameRe.MatchString(name):
			return "Tarifa Fija"
		case len([]rune(name)) > 2:
			r := []rune(name)
			if len(r) > 30 {
				r = r[:30]
			}
			return string(r)
		}
	}
	if fixedTextRe.MatchString(text) {
		return "Fija/Estable"
	}
	return strings.ToUpper(tariffTDRe.FindString(text))
}

func matchAmount(re *regexp.Regexp, text string) *decimal.Decimal {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ParseEuroNumber(m[len(m)-1])
}

// matchDiscount extracts a discount line. Invoices print these negative;
// the model stores them as a positive saving amount.
func matchDiscount(re *regexp.Regexp, text string) *decimal.Decimal {
	d := matchAmount(re, text)
	if d == nil {
		return nil
	}
	abs := d.Abs()
	return &abs
}
