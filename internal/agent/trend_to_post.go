package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMissingTopic is returned when a trend_to_post payload has no topic.
var ErrMissingTopic = errors.New("missing topic for trend_to_post workflow")

// TrendToPost is the composite workflow handler: it sequences trend
// analysis, content generation and scheduling for a single topic. To the
// dispatch loop it is just another handler.
type TrendToPost struct {
	analyzer  Handler
	generator Handler
	scheduler Handler
}

// NewTrendToPost creates the composite workflow over the three stage handlers.
func NewTrendToPost(analyzer, generator, scheduler Handler) *TrendToPost {
	return &TrendToPost{
		analyzer:  analyzer,
		generator: generator,
		scheduler: scheduler,
	}
}

// Name returns the agent type tag.
func (a *TrendToPost) Name() string {
	return TypeTrendToPost
}

// Handle runs the three stages sequentially, feeding each stage's output
// into the next, and returns the final recommendation along with the
// intermediate step outputs.
func (a *TrendToPost) Handle(ctx context.Context, input map[string]any) (map[string]any, error) {
	topic, _ := input["topic"].(string)
	if topic == "" {
		return nil, ErrMissingTopic
	}

	var steps []any
	record := func(name string, result map[string]any) {
		steps = append(steps, map[string]any{
			"agent_name": name,
			"output":     result,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}

	analysis, err := a.analyzer.Handle(ctx, map[string]any{"query": topic})
	if err != nil {
		return nil, fmt.Errorf("trend analysis stage failed: %w", err)
	}
	record(a.analyzer.Name(), analysis)

	analysisText, _ := analysis["analysis"].(string)
	content, err := a.generator.Handle(ctx, map[string]any{
		"query": fmt.Sprintf("%s (trends: %s)", topic, analysisText),
	})
	if err != nil {
		return nil, fmt.Errorf("content generation stage failed: %w", err)
	}
	record(a.generator.Name(), content)

	strategy, _ := content["strategy"].(string)
	schedule, err := a.scheduler.Handle(ctx, map[string]any{
		"query": fmt.Sprintf("post about %s: %s", topic, strategy),
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling stage failed: %w", err)
	}
	record(a.scheduler.Name(), schedule)

	return map[string]any{
		"topic":              topic,
		"final_output":       schedule,
		"intermediate_steps": steps,
	}, nil
}
