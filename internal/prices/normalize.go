package prices

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// The upstream payload is loosely typed: dates arrive as strings or
// numbers depending on the backing pipeline, prices occasionally as
// quoted strings. The wire types below accept anything and normalization
// coerces field by field.

type wirePoint struct {
	Time        any `json:"time"`
	PriceEurKWh any `json:"priceEurKWh"`
}

type wireWindow struct {
	StartTime          any `json:"startTime"`
	EndTime            any `json:"endTime"`
	AveragePriceEurKWh any `json:"averagePriceEurKWh"`
	Explanation        any `json:"explanation"`
}

type dailyResponse struct {
	Date               any         `json:"date"`
	Points             []wirePoint `json:"points"`
	AveragePriceEurKWh any         `json:"averagePriceEurKWh"`
	BestHour           wirePoint   `json:"bestHour"`
	WorstHour          wirePoint   `json:"worstHour"`
	BestWindow         wireWindow  `json:"bestWindow"`
	CO2Analysis        any         `json:"co2Analysis"`
	ActionableTips     []any       `json:"actionableTips"`
}

// normalizeDaily converts the lenient wire payload into the strict model.
// When points exist, the average and best/worst hours are recomputed from
// them instead of trusting the upstream's aggregates, so the invariant
// "BestHour/WorstHour are the min/max of Points" holds regardless of what
// the server sent.
func normalizeDaily(wire dailyResponse) models.DayPriceAnalysis {
	out := models.DayPriceAnalysis{
		Date:               asString(wire.Date),
		Points:             make([]models.PricePoint, 0, len(wire.Points)),
		AveragePriceEurKWh: asFloat(wire.AveragePriceEurKWh),
		BestHour:           normalizePoint(wire.BestHour),
		WorstHour:          normalizePoint(wire.WorstHour),
		BestWindow: models.BestWindow{
			StartTime:          asString(wire.BestWindow.StartTime),
			EndTime:            asString(wire.BestWindow.EndTime),
			AveragePriceEurKWh: asFloat(wire.BestWindow.AveragePriceEurKWh),
			Explanation:        asString(wire.BestWindow.Explanation),
		},
		CO2Analysis:    asString(wire.CO2Analysis),
		ActionableTips: make([]string, 0, len(wire.ActionableTips)),
	}

	for _, p := range wire.Points {
		out.Points = append(out.Points, normalizePoint(p))
	}
	for _, tip := range wire.ActionableTips {
		if s := asString(tip); s != "" {
			out.ActionableTips = append(out.ActionableTips, s)
		}
	}

	if len(out.Points) > 0 {
		best, worst := out.Points[0], out.Points[0]
		var sum float64
		for _, p := range out.Points {
			sum += p.PriceEurKWh
			if p.PriceEurKWh < best.PriceEurKWh {
				best = p
			}
			if p.PriceEurKWh > worst.PriceEurKWh {
				worst = p
			}
		}
		out.AveragePriceEurKWh = sum / float64(len(out.Points))
		out.BestHour = best
		out.WorstHour = worst
	}

	return out
}

func normalizePoint(p wirePoint) models.PricePoint {
	return models.PricePoint{
		Time:        asString(p.Time),
		PriceEurKWh: asFloat(p.PriceEurKWh),
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		// Integral values print without the decimal point.
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
