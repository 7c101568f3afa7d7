package models

// PowerAnalysis recommends a contracted-power adjustment.
type PowerAnalysis struct {
	CurrentPowerKw     float64 `json:"currentPowerKw"`
	RecommendedPowerKw float64 `json:"recommendedPowerKw"`
	AnnualSavingsEur   float64 `json:"annualSavingsEur"`
	AnalysisSummary    string  `json:"analysisSummary"`
}

// CostSimulation is one candidate tariff in the comparative analysis.
type CostSimulation struct {
	TariffName            string  `json:"tariffName"`
	ProviderName          string  `json:"providerName"`
	AverageMonthlyCostEur float64 `json:"averageMonthlyCostEur"`
	IsGreen               bool    `json:"isGreen"`
	HasPermanence         bool    `json:"hasPermanence"`
	PriceType             string  `json:"priceType"` // Fijo | Indexado
}

// ComparativeAnalysis is the aggregate recommendation derived from the
// session's invoices. Produced once per analysis run and treated as
// immutable output; figures are AI estimates, not guaranteed correct.
type ComparativeAnalysis struct {
	EstimatedAnnualSavingEur   float64          `json:"estimatedAnnualSavingEur"`
	BestTariffRecommendation   string           `json:"bestTariffRecommendation"`
	BestProviderRecommendation string           `json:"bestProviderRecommendation"`
	AverageCostEur             float64          `json:"averageCostEur"`
	CostSimulations            []CostSimulation `json:"costSimulations"`
	PowerAnalysis              *PowerAnalysis   `json:"powerAnalysis,omitempty"`
}

// HiringGuide walks a user through switching to a recommended tariff.
type HiringGuide struct {
	DocumentChecklist []string `json:"documentChecklist"`
	TalkingPoints     []string `json:"talkingPoints"`
	WatchOutFor       []string `json:"watchOutFor"`
	HiringURL         string   `json:"hiringUrl,omitempty"`
}

// ScheduledUse is one appliance slot in an OptimalUsagePlan.
type ScheduledUse struct {
	Appliance       string `json:"appliance"`
	RecommendedTime string `json:"recommendedTime"`
}

// OptimalUsagePlan schedules high-consumption appliances into the cheapest
// hours of the day.
type OptimalUsagePlan struct {
	OptimalSchedule       []ScheduledUse `json:"optimalSchedule"`
	EstimatedCostEur      float64        `json:"estimatedCostEur"`
	PeakCostComparisonEur float64        `json:"peakCostComparisonEur"`
	SavingsPercentage     float64        `json:"savingsPercentage"`
	Summary               string         `json:"summary"`
}
