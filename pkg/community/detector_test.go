package community

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/soundprediction/graphrag/pkg/types"
)

func edge(source, target string) *types.Edge {
	return &types.Edge{
		ID:     source + "-" + target,
		Index:  "test",
		Source: source,
		Target: target,
	}
}

func TestDetectEmpty(t *testing.T) {
	d := NewDetector()
	if got := d.Detect(nil); len(got) != 0 {
		t.Errorf("Detect(nil) = %v, want empty", got)
	}
}

func TestDetectTwoCliques(t *testing.T) {
	// Two triangles joined by nothing.
	edges := []*types.Edge{
		edge("a1", "a2"), edge("a2", "a3"), edge("a3", "a1"),
		edge("b1", "b2"), edge("b2", "b3"), edge("b3", "b1"),
	}
	labels := NewDetector().Detect(edges)

	if len(labels) != 6 {
		t.Fatalf("want labels for 6 nodes, got %d", len(labels))
	}
	if labels["a1"] != labels["a2"] || labels["a2"] != labels["a3"] {
		t.Errorf("triangle a split: %v", labels)
	}
	if labels["b1"] != labels["b2"] || labels["b2"] != labels["b3"] {
		t.Errorf("triangle b split: %v", labels)
	}
	if labels["a1"] == labels["b1"] {
		t.Errorf("disconnected triangles share a label: %v", labels)
	}
}

func TestDetectIgnoresSelfLoopsAndIsolated(t *testing.T) {
	edges := []*types.Edge{
		edge("a", "a"),
		edge("b", "c"),
	}
	labels := NewDetector().Detect(edges)
	if _, ok := labels["a"]; ok {
		t.Errorf("self-loop-only node should be isolated: %v", labels)
	}
	if labels["b"] != labels["c"] {
		t.Errorf("connected pair should share a label: %v", labels)
	}
}

func TestDetectDeterministic(t *testing.T) {
	var edges []*types.Edge
	for i := 0; i < 20; i++ {
		edges = append(edges, edge(fmt.Sprintf("n%02d", i), fmt.Sprintf("n%02d", (i+1)%20)))
		if i%3 == 0 {
			edges = append(edges, edge(fmt.Sprintf("n%02d", i), fmt.Sprintf("n%02d", (i+7)%20)))
		}
	}

	first := NewDetector().Detect(edges)
	for run := 0; run < 10; run++ {
		again := NewDetector().Detect(edges)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\nfirst = %v\nagain = %v", run, first, again)
		}
	}
}

func TestDetectDuplicateEdgesCollapse(t *testing.T) {
	edges := []*types.Edge{
		edge("a", "b"),
		edge("b", "a"),
		edge("a", "b"),
	}
	labels := NewDetector().Detect(edges)
	if len(labels) != 2 {
		t.Fatalf("want 2 labelled nodes, got %v", labels)
	}
	if labels["a"] != labels["b"] {
		t.Errorf("pair should converge to one label: %v", labels)
	}
}
