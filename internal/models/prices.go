package models

// PricePoint is one hourly PVPC price sample. Time is the ISO 8601 instant
// the hour starts at; prices are €/kWh and never negative.
type PricePoint struct {
	Time        string  `json:"time"`
	PriceEurKWh float64 `json:"priceEurKWh"`
}

// BestWindow is the cheapest block of consecutive hours in a day.
type BestWindow struct {
	StartTime          string  `json:"startTime"`
	EndTime            string  `json:"endTime"`
	AveragePriceEurKWh float64 `json:"averagePriceEurKWh"`
	Explanation        string  `json:"explanation"`
}

// DayPriceAnalysis is the normalized hourly price analysis for one day.
// Points are chronological, at most one per hour. When Points is non-empty,
// BestHour/WorstHour carry the minimum/maximum price of the day. When the
// market has not published data yet the whole struct is the empty fallback:
// zero numerics and a human-readable note in CO2Analysis.
type DayPriceAnalysis struct {
	Date               string       `json:"date"`
	Points             []PricePoint `json:"points"`
	AveragePriceEurKWh float64      `json:"averagePriceEurKWh"`
	BestHour           PricePoint   `json:"bestHour"`
	WorstHour          PricePoint   `json:"worstHour"`
	BestWindow         BestWindow   `json:"bestWindow"`
	CO2Analysis        string       `json:"co2Analysis"`
	ActionableTips     []string     `json:"actionableTips"`
}

// Empty reports whether the analysis is the no-data fallback.
func (d DayPriceAnalysis) Empty() bool {
	return len(d.Points) == 0
}

// EmptyDayPriceAnalysis builds the fallback analysis for a date without
// published prices. Note explains the absence to the end user.
func EmptyDayPriceAnalysis(date, note string) DayPriceAnalysis {
	return DayPriceAnalysis{
		Date:           date,
		Points:         []PricePoint{},
		CO2Analysis:    note,
		ActionableTips: []string{},
	}
}

// CacheEntry wraps a DayPriceAnalysis with its creation instant (Unix
// milliseconds). Each cache tier owns its entries and applies its own TTL.
type CacheEntry struct {
	Data      DayPriceAnalysis `json:"data"`
	Timestamp int64            `json:"timestamp"`
}

// Tariff is one commercial electricity product of a provider.
type Tariff struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"` // fijo | indexado | plana
	IsActive     bool   `json:"isActive"`
	PriceDetails any    `json:"priceDetails,omitempty"`
	Conditions   string `json:"conditions,omitempty"`
}

// Provider is an electricity retailer as served by the tariffs endpoint.
type Provider struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	LogoURL    string   `json:"logoUrl,omitempty"`
	WebsiteURL string   `json:"websiteUrl,omitempty"`
	Tariffs    []Tariff `json:"tariffs"`
}
