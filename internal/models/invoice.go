package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingPeriod delimits the invoiced date range. Empty strings mean the
// parser could not resolve the boundary.
type BillingPeriod struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// ContractedPower holds the contracted power per tariff period in kW.
type ContractedPower struct {
	P1 *decimal.Decimal `json:"p1,omitempty"` // Punta
	P2 *decimal.Decimal `json:"p2,omitempty"` // Llano/Valle
}

// ConsumptionByPeriod holds metered energy per 2.0TD billing period in kWh.
type ConsumptionByPeriod struct {
	P1 *decimal.Decimal `json:"p1,omitempty"` // Punta
	P2 *decimal.Decimal `json:"p2,omitempty"` // Llano
	P3 *decimal.Decimal `json:"p3,omitempty"` // Valle
}

// EnergySummary aggregates the invoice money and energy totals.
type EnergySummary struct {
	AmountDueEur   *decimal.Decimal `json:"amountDueEur,omitempty"`
	GrossAmountEur *decimal.Decimal `json:"grossAmountEur,omitempty"`
	TotalAmountEur *decimal.Decimal `json:"totalAmountEur,omitempty"`
	TotalKwh       *decimal.Decimal `json:"totalKwh,omitempty"`
}

// InvoiceData is the structured record extracted from one electricity
// invoice. Every field except ID and RawText is optional: a nil pointer or
// empty string means "not extracted", never zero. Records are built by
// merging the regex extraction with the AI extraction (regex fields win)
// and are immutable once added to the session collection.
//
// The discount fields (bono social, compensación de excedentes, batería
// virtual) carry the absolute saving amount even though invoices print
// them as negative adjustments.
type InvoiceData struct {
	ID                      string              `json:"id"`
	Provider                string              `json:"provider,omitempty"`
	Tariff                  string              `json:"tariff,omitempty"`
	CUPS                    string              `json:"cups,omitempty"`
	BillingPeriod           BillingPeriod       `json:"billingPeriod"`
	InvoiceNumber           string              `json:"invoiceNumber,omitempty"`
	ServicesAmountEur       *decimal.Decimal    `json:"servicesAmountEur,omitempty"`
	BonusSocialEur          *decimal.Decimal    `json:"bonusSocialEur,omitempty"`
	CompensationTotalEur    *decimal.Decimal    `json:"compensationTotalEur,omitempty"`
	VirtualBatterySavingEur *decimal.Decimal    `json:"virtualBatterySavingEur,omitempty"`
	ContractedPower         ContractedPower     `json:"contractedPower"`
	ConsumptionByPeriodKwh  ConsumptionByPeriod `json:"consumptionByPeriodKwh"`
	EnergySummary           EnergySummary       `json:"energySummary"`
	RawText                 string              `json:"rawText,omitempty"`
}

// ProcessingStatus is the lifecycle state of an uploaded invoice file.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusReading   ProcessingStatus = "reading"
	StatusAnalyzing ProcessingStatus = "analyzing"
	StatusDone      ProcessingStatus = "done"
	StatusError     ProcessingStatus = "error"
	StatusDuplicate ProcessingStatus = "duplicate"
)

// InvoiceFile tracks one uploaded document through the processing pipeline.
type InvoiceFile struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     ProcessingStatus `json:"status"`
	Detail     string           `json:"detail,omitempty"` // human-readable reason for error/duplicate
	UploadedAt time.Time        `json:"uploadedAt"`
}

// ManualData is the user-entered alternative to uploading invoices.
type ManualData struct {
	Provider          string  `json:"provider"`
	Tariff            string  `json:"tariff"`
	AvgConsumptionKwh float64 `json:"avgConsumptionKwh"`
	PeakPowerKw       float64 `json:"peakPowerKw"`
	OffPeakPowerKw    float64 `json:"offPeakPowerKw,omitempty"`
	Province          string  `json:"province,omitempty"`
}
