// Package flow implements a small state graph runner. Pipelines are built as
// named nodes connected by plain or conditional edges and executed over a
// map based state.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sheetflow-ai/sheetflow/log"
)

// END is the sentinel target that stops graph execution.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")
)

// State is the mutable data flowing through a graph.
type State = map[string]any

// NodeFunc runs a node against the current state and returns the keys to
// merge back into it.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Condition picks the next node name based on the current state.
type Condition func(ctx context.Context, state State) string

// Node is a named step in the graph.
type Node struct {
	Name        string
	Description string
	Function    NodeFunc
}

// Edge connects two nodes.
type Edge struct {
	From string
	To   string
}

// StepObserver is notified after each node run. Used for tracing.
type StepObserver interface {
	OnNodeEnd(ctx context.Context, node string, state State, duration time.Duration, err error)
}

// Graph is a builder for an executable pipeline.
type Graph struct {
	nodes            map[string]Node
	edges            []Edge
	conditionalEdges map[string]Condition
	entryPoint       string
	maxRetries       int
	retryBackoff     time.Duration
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:            make(map[string]Node),
		conditionalEdges: make(map[string]Condition),
	}
}

// AddNode registers a node under a unique name.
func (g *Graph) AddNode(name, description string, fn NodeFunc) {
	g.nodes[name] = Node{Name: name, Description: description, Function: fn}
}

// AddEdge connects from to to unconditionally.
func (g *Graph) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge connects from to a target chosen at runtime. The
// condition must return a node name or END.
func (g *Graph) AddConditionalEdge(from string, condition Condition) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint sets the node execution starts from.
func (g *Graph) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryPolicy retries failing nodes up to maxRetries times with a fixed
// backoff between attempts.
func (g *Graph) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	g.maxRetries = maxRetries
	g.retryBackoff = backoff
}

// Compile validates the graph and returns a Runnable.
func (g *Graph) Compile() (*Runnable, error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, e.From)
		}
		if e.To != END {
			if _, ok := g.nodes[e.To]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, e.To)
			}
		}
	}
	return &Runnable{graph: g}, nil
}

// Runnable is a compiled graph ready for execution.
type Runnable struct {
	graph    *Graph
	observer StepObserver
}

// WithObserver returns a Runnable reporting node completions to the observer.
func (r *Runnable) WithObserver(observer StepObserver) *Runnable {
	return &Runnable{graph: r.graph, observer: observer}
}

// Invoke runs the graph from its entry point until END, merging each node's
// returned keys into the state. The final state is returned.
func (r *Runnable) Invoke(ctx context.Context, initial State) (State, error) {
	state := make(State, len(initial))
	for k, v := range initial {
		state[k] = v
	}

	current := r.graph.entryPoint
	for current != END {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		start := time.Now()
		update, err := r.runNode(ctx, node, state)
		if r.observer != nil {
			r.observer.OnNodeEnd(ctx, node.Name, state, time.Since(start), err)
		}
		if err != nil {
			return state, fmt.Errorf("node %s: %w", node.Name, err)
		}
		for k, v := range update {
			state[k] = v
		}
		log.Debug("node %s finished in %s", node.Name, time.Since(start))

		next, err := r.nextNode(ctx, current, state)
		if err != nil {
			return state, err
		}
		current = next
	}
	return state, nil
}

func (r *Runnable) runNode(ctx context.Context, node Node, state State) (State, error) {
	update, err := node.Function(ctx, state)
	if err == nil || r.graph.maxRetries == 0 {
		return update, err
	}

	for attempt := 1; attempt <= r.graph.maxRetries; attempt++ {
		log.Warn("node %s failed (attempt %d): %v", node.Name, attempt, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.graph.retryBackoff):
		}
		update, err = node.Function(ctx, state)
		if err == nil {
			return update, nil
		}
	}
	return nil, err
}

func (r *Runnable) nextNode(ctx context.Context, current string, state State) (string, error) {
	if condition, ok := r.graph.conditionalEdges[current]; ok {
		next := condition(ctx, state)
		if next == "" {
			return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
		}
		if next != END {
			if _, ok := r.graph.nodes[next]; !ok {
				return "", fmt.Errorf("%w: %s", ErrNodeNotFound, next)
			}
		}
		return next, nil
	}

	for _, e := range r.graph.edges {
		if e.From == current {
			return e.To, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
}
