package trace

import (
	"context"
	"sort"
	"time"

	"github.com/sheetflow-ai/sheetflow/flow"
)

// FlowObserver reports graph node completions to a tracer as chain runs.
type FlowObserver struct {
	tracer Tracer
}

// NewFlowObserver wraps a tracer as a flow.StepObserver.
func NewFlowObserver(tracer Tracer) *FlowObserver {
	return &FlowObserver{tracer: tracer}
}

func (o *FlowObserver) OnNodeEnd(ctx context.Context, node string, state flow.State, duration time.Duration, err error) {
	id := o.tracer.StartRun(ctx, node, "chain", map[string]any{
		"duration_ms": duration.Milliseconds(),
	})
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	o.tracer.EndRun(ctx, id, map[string]any{"state_keys": keys}, err)
}

var _ flow.StepObserver = (*FlowObserver)(nil)
