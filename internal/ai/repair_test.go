package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	reply   string
	err     error
	lastReq GenerateRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.lastReq = req
	return s.reply, s.err
}

func TestDecodeLooseRepairs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "clean json",
			raw:  `{"a": 1}`,
			want: map[string]any{"a": 1.0},
		},
		{
			name: "markdown fence and trailing comma",
			raw:  "```json\n{\"a\": 1,}\n```",
			want: map[string]any{"a": 1.0},
		},
		{
			name: "single backticks",
			raw:  "`{\"a\": 1}`",
			want: map[string]any{"a": 1.0},
		},
		{
			name: "surrounded by prose",
			raw:  "Aquí tienes el resultado: {\"a\": 1} ¡Espero que te sirva!",
			want: map[string]any{"a": 1.0},
		},
		{
			name: "spanish numeric strings coerced",
			raw:  `{"total": "1.234,56", "nested": {"kwh": "45"}, "name": "Endesa"}`,
			want: map[string]any{"total": 1234.56, "nested": map[string]any{"kwh": 45.0}, "name": "Endesa"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]any
			require.NoError(t, decodeLoose(tc.raw, &out))
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestDecodeLooseArrayRoot(t *testing.T) {
	var out []string
	require.NoError(t, decodeLoose("Resultado: [\"uno\", \"dos\"] fin", &out))
	assert.Equal(t, []string{"uno", "dos"}, out)
}

func TestDecodeLooseGarbage(t *testing.T) {
	var out map[string]any
	assert.Error(t, decodeLoose("no hay nada estructurado aquí", &out))
	assert.Error(t, decodeLoose("abre { pero nunca cierra", &out))
}

func TestCoerceNumbersLeavesNonNumericStrings(t *testing.T) {
	assert.Equal(t, "2.0TD", coerceNumbers("2.0TD"))     // letters block the regex
	assert.Equal(t, "ES0031", coerceNumbers("ES0031"))   // ditto
	assert.Equal(t, 1234.56, coerceNumbers("1.234,56"))  // euro format
	assert.Equal(t, ",.,", coerceNumbers(",.,"))         // matches regex, fails parse
	assert.Equal(t, true, coerceNumbers(true))
}

func TestGenerateStructuredFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("provider error", func(t *testing.T) {
		svc := NewService(&stubProvider{err: errors.New("quota exceeded")}, nil, zerolog.Nop())
		got := svc.ComparativeAnalysis(ctx, nil)
		assert.Equal(t, "Indefinida", got.BestTariffRecommendation)
		assert.Equal(t, "—", got.BestProviderRecommendation)
		assert.Empty(t, got.CostSimulations)
	})

	t.Run("unparsable reply", func(t *testing.T) {
		svc := NewService(&stubProvider{reply: "lo siento, no puedo"}, nil, zerolog.Nop())
		got := svc.ComparativeAnalysis(ctx, nil)
		assert.Equal(t, "Indefinida", got.BestTariffRecommendation)
	})

	t.Run("valid reply", func(t *testing.T) {
		svc := NewService(&stubProvider{reply: `{"bestTariffRecommendation": "PVPC", "estimatedAnnualSavingEur": "120,50"}`}, nil, zerolog.Nop())
		got := svc.ComparativeAnalysis(ctx, nil)
		assert.Equal(t, "PVPC", got.BestTariffRecommendation)
		assert.Equal(t, 120.50, got.EstimatedAnnualSavingEur)
	})
}

func TestParseInvoiceDecodesDecimals(t *testing.T) {
	stub := &stubProvider{reply: "```json\n{\"cups\": \"ES0031405515781001JN0F\", \"energySummary\": {\"amountDueEur\": \"47,32\", \"totalKwh\": 245},}\n```"}
	svc := NewService(stub, nil, zerolog.Nop())

	inv := svc.ParseInvoice(context.Background(), "texto de factura")
	assert.True(t, stub.lastReq.JSONOutput)
	assert.Equal(t, "ES0031405515781001JN0F", inv.CUPS)
	require.NotNil(t, inv.EnergySummary.AmountDueEur)
	assert.Equal(t, "47.32", inv.EnergySummary.AmountDueEur.String())
	require.NotNil(t, inv.EnergySummary.TotalKwh)
	assert.Equal(t, "245", inv.EnergySummary.TotalKwh.String())
}

func TestOptimalUsagePlanSanitized(t *testing.T) {
	ctx := context.Background()

	t.Run("schedule without costs gets honest summary", func(t *testing.T) {
		svc := NewService(&stubProvider{reply: `{"optimalSchedule": [{"appliance": "Lavadora", "recommendedTime": "04:00"}], "summary": "plan listo"}`}, nil, zerolog.Nop())
		plan := svc.OptimalUsagePlan(ctx, []string{"Lavadora"}, nil)
		require.Len(t, plan.OptimalSchedule, 1)
		assert.Equal(t, "No se pudo calcular el coste exacto, pero sí las mejores horas para tu consumo.", plan.Summary)
	})

	t.Run("provider failure keeps fallback", func(t *testing.T) {
		svc := NewService(&stubProvider{err: errors.New("boom")}, nil, zerolog.Nop())
		plan := svc.OptimalUsagePlan(ctx, []string{"Horno"}, nil)
		assert.Empty(t, plan.OptimalSchedule)
		assert.Contains(t, plan.Summary, "No se pudo generar el plan")
	})

	t.Run("complete plan untouched", func(t *testing.T) {
		svc := NewService(&stubProvider{reply: `{"optimalSchedule": [{"appliance": "Lavadora", "recommendedTime": "04:00"}], "estimatedCostEur": 0.85, "peakCostComparisonEur": 2.30, "savingsPercentage": 63, "summary": "ahorro claro"}`}, nil, zerolog.Nop())
		plan := svc.OptimalUsagePlan(ctx, []string{"Lavadora"}, nil)
		assert.Equal(t, "ahorro claro", plan.Summary)
		assert.Equal(t, 0.85, plan.EstimatedCostEur)
	})
}

func TestChatContextHeader(t *testing.T) {
	stub := &stubProvider{reply: "SITUACIÓN\nTodo bien."}
	svc := NewService(&stubProvider{}, stub, zerolog.Nop())

	out := svc.Chat(context.Background(), "¿qué potencia tengo?", ChatContext{Source: "manual", Screen: "panel"})
	assert.Equal(t, "SITUACIÓN\nTodo bien.", out)
	assert.Contains(t, stub.lastReq.Prompt, "[CONTEXTO DE LA APP]")
	assert.Contains(t, stub.lastReq.Prompt, `source: "manual"`)
	assert.Contains(t, stub.lastReq.Prompt, `screen: "panel"`)
	assert.Contains(t, stub.lastReq.Prompt, "¿qué potencia tengo?")
	assert.Contains(t, stub.lastReq.System, "Thiago")

	// Without context the message goes through untouched.
	_ = svc.Chat(context.Background(), "hola", ChatContext{})
	assert.Equal(t, "hola", stub.lastReq.Prompt)
}

func TestChatUnavailableMessage(t *testing.T) {
	svc := NewService(&stubProvider{}, &stubProvider{err: errors.New("down")}, zerolog.Nop())
	out := svc.Chat(context.Background(), "hola", ChatContext{})
	assert.Equal(t, chatUnavailable, out)
}

func TestFmtNum(t *testing.T) {
	assert.Equal(t, "0,12345 €/kWh", fmtNum(0.12345, "€/kWh", 5))
	assert.Equal(t, "1.234,5", fmtNum(1234.5, "", 3))
	assert.Equal(t, "45", fmtNum(45, "", 3))
	assert.Equal(t, "-2,13 €", fmtNum(-2.13, "€", 2))
}
