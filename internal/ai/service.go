package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/miMejorLuz/savings-advisor-service/internal/dateutil"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// Service bundles the advice and extraction operations on top of a
// Provider. The chat provider may differ from the extraction one: chat
// benefits from a stronger model while extraction is volume work.
type Service struct {
	provider Provider
	chat     Provider
	log      zerolog.Logger
}

// NewService builds the AI service. chat falls back to provider when nil.
func NewService(provider, chat Provider, log zerolog.Logger) *Service {
	if chat == nil {
		chat = provider
	}
	return &Service{provider: provider, chat: chat, log: log}
}

// ParseInvoice extracts invoice fields from OCR text. The result never
// carries an ID or the raw text; the caller owns those. On any provider
// failure the zero value comes back and the regex extraction stands alone.
func (s *Service) ParseInvoice(ctx context.Context, text string) models.InvoiceData {
	prompt := "Extrae la siguiente información del texto de esta factura de electricidad " +
		"y devuélvela como un objeto JSON con los campos: provider, tariff, cups, " +
		"billingPeriod{from,to}, invoiceNumber, servicesAmountEur, bonusSocialEur, " +
		"compensationTotalEur, virtualBatterySavingEur, contractedPower{p1,p2}, " +
		"consumptionByPeriodKwh{p1,p2,p3}, energySummary{amountDueEur,totalKwh}. " +
		"El texto está en español. Asegúrate de que las fechas estén en formato YYYY-MM-DD. " +
		"Si un campo no está presente, omítelo. Los importes deben ser números, no strings. " +
		"Texto de la factura:\n\n" + text
	return generateStructured(ctx, s.provider, s.log, prompt, models.InvoiceData{})
}

// ComparativeAnalysis recommends the best tariff for the user's invoices.
func (s *Service) ComparativeAnalysis(ctx context.Context, invoices []models.InvoiceData) models.ComparativeAnalysis {
	prompt := `Basado en los datos de estas facturas de un usuario en España, realiza un análisis integral y devuelve un JSON ESTRICTO, sin texto adicional, con los campos: estimatedAnnualSavingEur, bestTariffRecommendation, bestProviderRecommendation, averageCostEur, costSimulations[{tariffName, providerName, averageMonthlyCostEur, isGreen, hasPermanence, priceType}], powerAnalysis{currentPowerKw, recommendedPowerKw, annualSavingsEur, analysisSummary}.

1. **Análisis Comparativo de Tarifas:** Recomienda la mejor tarifa y proporciona una simulación de costes con 2-3 tarifas alternativas. Para cada simulación, incluye si es energía 100% verde (isGreen), si tiene permanencia (hasPermanence) y el tipo de precio ('Fijo' o 'Indexado').
2. **Análisis de Potencia Contratada:** Analiza la potencia contratada del usuario. Si consideras que está sobredimensionada, proporciona una recomendación para bajarla, estimando el ahorro anual. Si la potencia es correcta, puedes omitir este bloque.

Los datos de las facturas son:

` + marshalIndent(invoices)

	fallback := models.ComparativeAnalysis{
		BestTariffRecommendation:   "Indefinida",
		BestProviderRecommendation: "—",
		CostSimulations:            []models.CostSimulation{},
	}
	return generateStructured(ctx, s.provider, s.log, prompt, fallback)
}

// HiringGuide walks the user through switching provider.
func (s *Service) HiringGuide(ctx context.Context, tariff, provider, cups string) models.HiringGuide {
	prompt := fmt.Sprintf(`Genera una guía de contratación para un usuario en España que quiere cambiarse a la tarifa %q con la comercializadora %q. Su CUPS es %s. La guía debe incluir una checklist de documentos, puntos clave para una llamada telefónica, aspectos a vigilar en el contrato y, si es posible, un enlace directo o genérico a la página de contratación de la comercializadora. Devuelve solo un JSON con los campos: documentChecklist[], talkingPoints[], watchOutFor[], hiringUrl.`, tariff, provider, cups)
	return generateStructured(ctx, s.provider, s.log, prompt, models.HiringGuide{
		DocumentChecklist: []string{},
		TalkingPoints:     []string{},
		WatchOutFor:       []string{},
	})
}

// DayPriceAnalysis asks the model for a plausible hourly price analysis.
// Used only when the real upstream has nothing for the date; the output is
// an estimate, never real market data.
func (s *Service) DayPriceAnalysis(ctx context.Context, date string) models.DayPriceAnalysis {
	prompt := fmt.Sprintf(`Actúa como un analista de datos experto en el mercado energético español, especializado en optimizar el consumo para usuarios residenciales. Tu objetivo es proporcionar un análisis horario detallado de los precios de la electricidad (PVPC) para una fecha específica y traducirlo en consejos claros y accionables para el ahorro.

**TAREA PRINCIPAL:**
Para la fecha solicitada (%s), genera un análisis completo de los precios horarios del PVPC en España.

**INSTRUCCIONES ESTRICTAS DE SALIDA:**
1. **FORMATO OBLIGATORIO:** Tu única salida debe ser un objeto JSON VÁLIDO con los campos: date, points[{time, priceEurKWh}], averagePriceEurKWh, bestHour{time, priceEurKWh}, worstHour{time, priceEurKWh}, bestWindow{startTime, endTime, averagePriceEurKWh, explanation}, co2Analysis, actionableTips[].
2. **SIN TEXTO ADICIONAL:** No incluyas NINGÚN texto, explicación, ni preámbulos fuera del propio objeto JSON. La respuesta debe ser el JSON puro.

**DETALLES PARA CADA CAMPO DEL JSON:**
- **points**: Genera un array con 24 objetos (00:00 a 23:00). Cada objeto debe tener la hora en formato ISO 8601 y el precio en €/kWh con al menos 5 decimales para máxima precisión.
- **bestHour / worstHour**: Identifica con precisión la hora exacta con el precio más bajo y más alto del día.
- **bestWindow**: Calcula la 'mejor ventana de ahorro': el bloque de **dos horas consecutivas** cuyo precio medio sea el más bajo. En la explicación, menciona que es ideal para tareas de alto consumo.
- **co2Analysis**: Redacta un 'Análisis de Sostenibilidad'. Explica la relación entre precios bajos y energía renovable.
- **actionableTips**: Proporciona **tres consejos prácticos y específicos** para el día, con tono amigable, vinculados a las horas clave (bestWindow, bestHour, worstHour).`, date)

	return generateStructured(ctx, s.provider, s.log, prompt, models.EmptyDayPriceAnalysis(date, ""))
}

// OptimalUsagePlan schedules the given appliances into the cheapest hours
// of the provided price curve. The response is sanitized: a schedule
// without cost figures is still useful and gets an honest summary.
func (s *Service) OptimalUsagePlan(ctx context.Context, appliances []string, points []models.PricePoint) models.OptimalUsagePlan {
	prompt := fmt.Sprintf(`Eres un asesor de eficiencia energética. Un usuario quiere saber cuál es el mejor momento para usar una serie de electrodomésticos hoy para minimizar su coste.

**Datos de Entrada:**
1. **Electrodomésticos seleccionados:** %s
2. **Precios de la electricidad (€/kWh) para hoy:** %s

**Tu Tarea:**
Crea un plan de consumo óptimo. Considera duraciones y consumos típicos para cada electrodoméstico (ej: Lavadora 2h, Horno 1h, Coche eléctrico 4-6h). No puedes programar usos que se solapen en el tiempo.

**INSTRUCCIONES ESTRICTAS DE SALIDA:**
1. **FORMATO OBLIGATORIO:** Tu única salida debe ser un objeto JSON VÁLIDO y NADA MÁS. Sin texto, sin explicaciones, sin marcas de markdown.
2. **ESTRUCTURA DEL JSON:** {"optimalSchedule": [{"appliance": "string", "recommendedTime": "string (HH:00)"}], "estimatedCostEur": number, "peakCostComparisonEur": number, "savingsPercentage": number, "summary": "string"}
3. **TIPOS DE DATOS:** Los campos estimatedCostEur, peakCostComparisonEur y savingsPercentage deben ser numéricos, no strings.`,
		strings.Join(appliances, ", "), marshalCompact(points))

	fallback := models.OptimalUsagePlan{
		OptimalSchedule: []models.ScheduledUse{},
		Summary:         "No se pudo generar el plan de ahorro en este momento. Por favor, inténtalo de nuevo más tarde.",
	}

	plan := generateStructured(ctx, s.provider, s.log, prompt, fallback)
	if plan.OptimalSchedule == nil {
		plan.OptimalSchedule = []models.ScheduledUse{}
	}
	if plan.Summary == "" {
		plan.Summary = "Aquí tienes tu plan de ahorro personalizado."
	}
	if len(plan.OptimalSchedule) > 0 && plan.EstimatedCostEur == 0 && plan.PeakCostComparisonEur == 0 {
		plan.Summary = "No se pudo calcular el coste exacto, pero sí las mejores horas para tu consumo."
	}
	return plan
}

// ExplainPlan turns an OptimalUsagePlan's figures into a short friendly
// explanation.
func (s *Service) ExplainPlan(ctx context.Context, plan models.OptimalUsagePlan) (string, error) {
	slots := make([]string, 0, len(plan.OptimalSchedule))
	for _, u := range plan.OptimalSchedule {
		slots = append(slots, fmt.Sprintf("%s a las %s", u.Appliance, u.RecommendedTime))
	}
	prompt := fmt.Sprintf(`Un usuario ha recibido el siguiente plan de ahorro del simulador de consumo para hoy.

**Datos del Plan:**
- **Electrodomésticos y horas óptimas:** %s
- **Coste estimado en horas óptimas:** %.2f €
- **Coste si se usaran en horas caras:** %.2f €
- **Ahorro porcentual:** %.0f%%

**Tu Tarea:**
Explica de forma muy breve y amigable (máximo 3-4 frases) de dónde salen esas cifras.
- Menciona que el coste estimado es por usar los aparatos en las horas más baratas del día.
- Explica que el coste "en horas caras" es una simulación de lo que costaría usar esos mismos aparatos en los momentos de precio más alto.
- El objetivo es que el usuario entienda el valor de planificar su consumo.
- Utiliza **negrita** para los importes y conceptos clave.`,
		strings.Join(slots, ", "), plan.EstimatedCostEur, plan.PeakCostComparisonEur, plan.SavingsPercentage)

	return s.provider.Generate(ctx, GenerateRequest{Prompt: prompt})
}

// Explain produces a short tooltip-style definition of a Spanish
// electricity-market concept.
func (s *Service) Explain(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(`Explica de forma muy breve y directa el siguiente concepto del mercado eléctrico español, en un máximo de 3 frases. El objetivo es dar una definición rápida, como una ayuda contextual (tooltip). Sé claro, ve al grano, y usa Markdown (**negrita**) para resaltar los términos más importantes. El concepto es: %q.`, topic)
	return s.provider.Generate(ctx, GenerateRequest{Prompt: prompt})
}

// ConsumptionTrend summarizes how the user's consumption and cost evolve
// across their invoices.
func (s *Service) ConsumptionTrend(ctx context.Context, invoices []models.InvoiceData) (string, error) {
	prompt := `Analiza la evolución del consumo y coste de este usuario basándote en sus facturas. Proporciona un breve texto (2-3 frases) con una conclusión o insight clave. Por ejemplo, si el consumo está subiendo, bajando o si el coste por kWh está mejorando. Datos de facturas:

` + marshalIndent(invoices)
	return s.provider.Generate(ctx, GenerateRequest{Prompt: prompt})
}

// DailyTips generates three concrete tips for today's price curve.
func (s *Service) DailyTips(ctx context.Context, analysis models.DayPriceAnalysis) (string, error) {
	prompt := fmt.Sprintf(`Actúa como un experto en eficiencia energética en España. Genera 3 consejos prácticos y accionables para hoy, basándote en los datos de precios de la luz (PVPC) que te proporciono. Los consejos deben ser específicos para el día de hoy.

**Datos de precios para hoy (%s):**
- **Hora más barata:** %s (%s)
- **Hora más cara:** %s (%s)
- **Mejor ventana de 2h:** de %s a %s
- **Precio medio del día:** %s

**Instrucciones:**
- Escribe 3 consejos claros y directos.
- Utiliza los datos de precios para que los consejos sean concretos (ej: "Aprovecha las %s para...").
- Formatea la respuesta en Markdown, usando ### para el título de cada consejo y **negrita** para resaltar.
- No añadas introducciones ni conclusiones, solo los 3 consejos.`,
		analysis.Date,
		dateutil.Hour(analysis.BestHour.Time), fmtNum(analysis.BestHour.PriceEurKWh, "€/kWh", 5),
		dateutil.Hour(analysis.WorstHour.Time), fmtNum(analysis.WorstHour.PriceEurKWh, "€/kWh", 5),
		dateutil.Hour(analysis.BestWindow.StartTime), dateutil.Hour(analysis.BestWindow.EndTime),
		fmtNum(analysis.AveragePriceEurKWh, "€/kWh", 5),
		dateutil.Hour(analysis.BestHour.Time))

	out, err := s.provider.Generate(ctx, GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("no se pudieron generar los consejos desde la IA: %w", err)
	}
	return out, nil
}

// GenericTips generates date-independent savings advice.
func (s *Service) GenericTips(ctx context.Context) (string, error) {
	prompt := `Actúa como un experto en eficiencia energética en España. Genera una lista de 2 consejos prácticos y poco comunes para que un usuario residencial ahorre en su factura de la luz. Estructura la respuesta con un título corto y una breve explicación para cada consejo. Usa Markdown para formatear (### para títulos, - para listas, ** para negrita). No repitas consejos sobre programar lavadoras o evitar horas punta. Sé más original.`
	out, err := s.provider.Generate(ctx, GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("no se pudieron generar más consejos en este momento: %w", err)
	}
	return out, nil
}

func marshalIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func marshalCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// fmtNum renders a number in Spanish format ("." thousands, "," decimal)
// with at most digits fractional digits, optionally followed by a unit.
func fmtNum(n float64, unit string, digits int) string {
	s := strconv.FormatFloat(n, 'f', digits, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".")
	if frac != "" {
		out += "," + frac
	}
	if neg {
		out = "-" + out
	}
	if unit != "" {
		out += " " + unit
	}
	return out
}
