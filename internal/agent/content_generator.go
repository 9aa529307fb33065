package agent

import (
	"context"
	"fmt"
	"strings"
)

// ContentGenerator turns trending topics into content ideas.
type ContentGenerator struct {
	gen Generator
}

// NewContentGenerator creates a ContentGenerator backed by the given generator.
func NewContentGenerator(gen Generator) *ContentGenerator {
	return &ContentGenerator{gen: gen}
}

// Name returns the agent type tag.
func (a *ContentGenerator) Name() string {
	return TypeContentGenerator
}

const contentGeneratorPrompt = `As a Creative Content Strategist, generate engaging content ideas based on the following topic or trends:

Topic/Trends: %q

Consider various content types (e.g., blog posts, social media updates, video scripts) and target platforms.

Provide, as sections separated by blank lines:
1. A list of creative content ideas, as "- " bullet points.
2. A brief content strategy overview.
3. Relevant hashtags, as "- " bullet points.
4. Tips for maximizing engagement, as "- " bullet points in the final section.`

// Handle generates content ideas for the payload's query.
func (a *ContentGenerator) Handle(ctx context.Context, input map[string]any) (map[string]any, error) {
	query := queryField(input)

	raw, err := a.gen.Generate(ctx, fmt.Sprintf(contentGeneratorPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}

	return parseContentIdeas(raw), nil
}

func parseContentIdeas(raw string) map[string]any {
	sections := splitSections(raw)
	if len(sections) == 0 {
		return map[string]any{
			"content_ideas":   []any{},
			"strategy":        raw,
			"hashtags":        []any{},
			"engagement_tips": []any{},
		}
	}

	ideas := bulletItems(sections[0])
	tips := bulletItems(sections[len(sections)-1])

	// Hashtags can land in any middle section; collect every #-prefixed
	// bullet there and leave the rest as strategy prose.
	var hashtags []string
	for _, section := range sections {
		for _, item := range bulletItems(section) {
			if strings.HasPrefix(item, "#") {
				hashtags = append(hashtags, item)
			}
		}
	}

	return map[string]any{
		"content_ideas":   toAnySlice(ideas),
		"strategy":        middleText(sections),
		"hashtags":        toAnySlice(hashtags),
		"engagement_tips": toAnySlice(tips),
	}
}
