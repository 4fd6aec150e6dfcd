package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_LinearInvoke(t *testing.T) {
	g := NewGraph()
	g.AddNode("load", "loads input", func(ctx context.Context, state State) (State, error) {
		return State{"rows": 3}, nil
	})
	g.AddNode("extract", "extracts rows", func(ctx context.Context, state State) (State, error) {
		return State{"extracted": state["rows"].(int) * 2}, nil
	})
	g.AddEdge("load", "extract")
	g.AddEdge("extract", END)
	g.SetEntryPoint("load")

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), State{"file": "a.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "a.xlsx", final["file"])
	assert.Equal(t, 3, final["rows"])
	assert.Equal(t, 6, final["extracted"])
}

func TestGraph_ConditionalEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode("check", "routes on status", func(ctx context.Context, state State) (State, error) {
		return nil, nil
	})
	g.AddNode("ok", "", func(ctx context.Context, state State) (State, error) {
		return State{"branch": "ok"}, nil
	})
	g.AddNode("fail", "", func(ctx context.Context, state State) (State, error) {
		return State{"branch": "fail"}, nil
	})
	g.AddConditionalEdge("check", func(ctx context.Context, state State) string {
		if state["status"] == "valid" {
			return "ok"
		}
		return "fail"
	})
	g.AddEdge("ok", END)
	g.AddEdge("fail", END)
	g.SetEntryPoint("check")

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), State{"status": "valid"})
	require.NoError(t, err)
	assert.Equal(t, "ok", final["branch"])

	final, err = runnable.Invoke(context.Background(), State{"status": "broken"})
	require.NoError(t, err)
	assert.Equal(t, "fail", final["branch"])
}

func TestGraph_CompileErrors(t *testing.T) {
	g := NewGraph()
	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrEntryPointNotSet)

	g.SetEntryPoint("missing")
	_, err = g.Compile()
	assert.ErrorIs(t, err, ErrNodeNotFound)

	g2 := NewGraph()
	g2.AddNode("a", "", func(ctx context.Context, state State) (State, error) { return nil, nil })
	g2.AddEdge("a", "ghost")
	g2.SetEntryPoint("a")
	_, err = g2.Compile()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestGraph_NodeError(t *testing.T) {
	g := NewGraph()
	g.AddNode("boom", "", func(ctx context.Context, state State) (State, error) {
		return nil, errors.New("upstream unavailable")
	})
	g.AddEdge("boom", END)
	g.SetEntryPoint("boom")

	runnable, err := g.Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), State{})
	assert.ErrorContains(t, err, "node boom")
	assert.ErrorContains(t, err, "upstream unavailable")
}

func TestGraph_NoOutgoingEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode("lonely", "", func(ctx context.Context, state State) (State, error) { return nil, nil })
	g.SetEntryPoint("lonely")

	runnable, err := g.Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), State{})
	assert.ErrorIs(t, err, ErrNoOutgoingEdge)
}

func TestGraph_Retry(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	g := NewGraph()
	g.AddNode("flaky", "", func(ctx context.Context, state State) (State, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return State{"done": true}, nil
	})
	g.AddEdge("flaky", END)
	g.SetEntryPoint("flaky")
	g.SetRetryPolicy(3, time.Millisecond)

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, true, final["done"])
	assert.Equal(t, 3, attempts)
}

type recordingObserver struct {
	nodes []string
}

func (o *recordingObserver) OnNodeEnd(ctx context.Context, node string, state State, d time.Duration, err error) {
	o.nodes = append(o.nodes, node)
}

func TestGraph_Observer(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", "", func(ctx context.Context, state State) (State, error) { return nil, nil })
	g.AddNode("b", "", func(ctx context.Context, state State) (State, error) { return nil, nil })
	g.AddEdge("a", "b")
	g.AddEdge("b", END)
	g.SetEntryPoint("a")

	runnable, err := g.Compile()
	require.NoError(t, err)

	obs := &recordingObserver{}
	_, err = runnable.WithObserver(obs).Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, obs.nodes)
}
