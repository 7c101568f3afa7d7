package advisor

import (
	"github.com/shopspring/decimal"

	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// mergeInvoices combines the regex extraction with the AI extraction.
// The regex result wins wherever it found something; the AI only fills
// gaps. Blind struct overlay would let an AI fallback wipe regex fields,
// so every leaf is merged explicitly.
//
// InvoiceNumber is special: the regex stage stamps "N/A" when it cannot
// extract one, which counts as absent here.
func mergeInvoices(base, extra models.InvoiceData) models.InvoiceData {
	out := base

	out.Provider = firstString(base.Provider, extra.Provider)
	out.Tariff = firstString(base.Tariff, extra.Tariff)
	out.CUPS = firstString(base.CUPS, extra.CUPS)
	out.BillingPeriod.From = firstString(base.BillingPeriod.From, extra.BillingPeriod.From)
	out.BillingPeriod.To = firstString(base.BillingPeriod.To, extra.BillingPeriod.To)

	if base.InvoiceNumber == "" || base.InvoiceNumber == "N/A" {
		out.InvoiceNumber = firstString(extra.InvoiceNumber, base.InvoiceNumber)
	}

	out.ServicesAmountEur = firstDecimal(base.ServicesAmountEur, extra.ServicesAmountEur)
	out.BonusSocialEur = firstDecimal(base.BonusSocialEur, extra.BonusSocialEur)
	out.CompensationTotalEur = firstDecimal(base.CompensationTotalEur, extra.CompensationTotalEur)
	out.VirtualBatterySavingEur = firstDecimal(base.VirtualBatterySavingEur, extra.VirtualBatterySavingEur)

	out.ContractedPower.P1 = firstDecimal(base.ContractedPower.P1, extra.ContractedPower.P1)
	out.ContractedPower.P2 = firstDecimal(base.ContractedPower.P2, extra.ContractedPower.P2)

	out.ConsumptionByPeriodKwh.P1 = firstDecimal(base.ConsumptionByPeriodKwh.P1, extra.ConsumptionByPeriodKwh.P1)
	out.ConsumptionByPeriodKwh.P2 = firstDecimal(base.ConsumptionByPeriodKwh.P2, extra.ConsumptionByPeriodKwh.P2)
	out.ConsumptionByPeriodKwh.P3 = firstDecimal(base.ConsumptionByPeriodKwh.P3, extra.ConsumptionByPeriodKwh.P3)

	out.EnergySummary.AmountDueEur = firstDecimal(base.EnergySummary.AmountDueEur, extra.EnergySummary.AmountDueEur)
	out.EnergySummary.GrossAmountEur = firstDecimal(base.EnergySummary.GrossAmountEur, extra.EnergySummary.GrossAmountEur)
	out.EnergySummary.TotalAmountEur = firstDecimal(base.EnergySummary.TotalAmountEur, extra.EnergySummary.TotalAmountEur)
	out.EnergySummary.TotalKwh = firstDecimal(base.EnergySummary.TotalKwh, extra.EnergySummary.TotalKwh)

	return out
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstDecimal(a, b *decimal.Decimal) *decimal.Decimal {
	if a != nil {
		return a
	}
	return b
}
