package cost

import "strings"

type PricingTable struct {
	InputPricePerMillion  float64
	OutputPricePerMillion float64
}

// https://cloud.google.com/vertex-ai/generative-ai/pricing (prompts up to 200k tokens)
var defaultPricing = map[string]PricingTable{
	"gemini-2.5-pro":        {InputPricePerMillion: 1.25, OutputPricePerMillion: 10.00},
	"gemini-2.5-flash":      {InputPricePerMillion: 0.30, OutputPricePerMillion: 2.50},
	"gemini-2.5-flash-lite": {InputPricePerMillion: 0.10, OutputPricePerMillion: 0.40},
	"gemini-2.0-flash":      {InputPricePerMillion: 0.15, OutputPricePerMillion: 0.60},
	"gemini-2.0-flash-lite": {InputPricePerMillion: 0.075, OutputPricePerMillion: 0.30},
}

// Calculator estimates the USD cost of a Gemini call from its token usage.
type Calculator struct {
	pricing map[string]PricingTable
}

func NewCalculator() *Calculator {
	return &Calculator{pricing: defaultPricing}
}

// EstimateCost returns 0 for models without a known price. Versioned names
// such as gemini-2.5-flash-001 use the longest matching family prefix.
func (c *Calculator) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	table, ok := c.lookup(model)
	if !ok {
		return 0
	}

	inputCost := (float64(inputTokens) / 1_000_000) * table.InputPricePerMillion
	outputCost := (float64(outputTokens) / 1_000_000) * table.OutputPricePerMillion
	return inputCost + outputCost
}

func (c *Calculator) lookup(model string) (PricingTable, bool) {
	model = strings.ToLower(model)
	if table, ok := c.pricing[model]; ok {
		return table, true
	}

	best := ""
	for name := range c.pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return PricingTable{}, false
	}
	return c.pricing[best], true
}
