package agent

import (
	"context"
	"fmt"
)

// TrendAnalyzer identifies and analyzes trending topics for a query.
type TrendAnalyzer struct {
	gen Generator
}

// NewTrendAnalyzer creates a TrendAnalyzer backed by the given generator.
func NewTrendAnalyzer(gen Generator) *TrendAnalyzer {
	return &TrendAnalyzer{gen: gen}
}

// Name returns the agent type tag.
func (a *TrendAnalyzer) Name() string {
	return TypeTrendAnalyzer
}

const trendAnalyzerPrompt = `As a Trend Analysis Expert, analyze the following topic or query to identify current trends, key insights, and potential content angles:
Query: %q

Provide:
1. A list of identified trends related to the query, as "- " bullet points.
2. Detailed analysis of each trend.
3. Actionable recommendations or content ideas, as "- " bullet points in a final section.

Format the response as a structured analysis with sections separated by blank lines.`

// Handle runs trend analysis for the payload's query and returns a result
// with trends, analysis and recommendations.
func (a *TrendAnalyzer) Handle(ctx context.Context, input map[string]any) (map[string]any, error) {
	query := queryField(input)

	raw, err := a.gen.Generate(ctx, fmt.Sprintf(trendAnalyzerPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("trend analysis failed: %w", err)
	}

	return parseTrendAnalysis(raw), nil
}

// parseTrendAnalysis structures free-text model output into the trends /
// analysis / recommendations shape. Unparseable output falls back to a
// structure carrying the raw text rather than failing the task.
func parseTrendAnalysis(raw string) map[string]any {
	sections := splitSections(raw)
	if len(sections) == 0 {
		return map[string]any{
			"trends":          []any{},
			"analysis":        raw,
			"recommendations": []any{},
		}
	}

	trendTopics := bulletItems(sections[0])
	trends := make([]any, 0, len(trendTopics))
	for _, topic := range trendTopics {
		trends = append(trends, map[string]any{"topic": topic})
	}

	recommendations := bulletItems(sections[len(sections)-1])

	return map[string]any{
		"trends":          trends,
		"analysis":        middleText(sections),
		"recommendations": toAnySlice(recommendations),
	}
}
