package agent

import (
	"context"
	"fmt"
)

// Scheduler determines optimal publishing schedules for content.
type Scheduler struct {
	gen Generator
}

// NewScheduler creates a Scheduler backed by the given generator.
func NewScheduler(gen Generator) *Scheduler {
	return &Scheduler{gen: gen}
}

// Name returns the agent type tag.
func (a *Scheduler) Name() string {
	return TypeScheduler
}

const schedulerPrompt = `As a Scheduling Optimization Expert, create an optimal publishing schedule for the following content or campaign:

Content/Campaign Description: %q

Consider target platforms (e.g., Twitter, Instagram, Blog), target audience, and general best practices for engagement.

Provide, as sections separated by blank lines:
1. A detailed publishing schedule with suggested timings, as "- " bullet points.
2. Rationale for your scheduling decisions.
3. Optimization recommendations, as "- " bullet points in the final section.`

// Handle produces a publishing schedule for the payload's query.
func (a *Scheduler) Handle(ctx context.Context, input map[string]any) (map[string]any, error) {
	query := queryField(input)

	raw, err := a.gen.Generate(ctx, fmt.Sprintf(schedulerPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("scheduling failed: %w", err)
	}

	return parseSchedule(raw), nil
}

func parseSchedule(raw string) map[string]any {
	sections := splitSections(raw)
	if len(sections) == 0 {
		return map[string]any{
			"schedule":      []any{},
			"rationale":     raw,
			"optimizations": []any{},
		}
	}

	slots := bulletItems(sections[0])
	schedule := make([]any, 0, len(slots))
	for _, slot := range slots {
		schedule = append(schedule, map[string]any{"slot": slot})
	}

	return map[string]any{
		"schedule":      schedule,
		"rationale":     middleText(sections),
		"optimizations": toAnySlice(bulletItems(sections[len(sections)-1])),
	}
}
