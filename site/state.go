package site

import (
	"sync"

	"github.com/iedon/sitepack/graph"
)

// buildState keeps the outcome of the latest successful build for the dev server.
type buildState struct {
	mu     sync.RWMutex
	report *Report
	graph  *graph.Graph
}

func newBuildState() *buildState {
	return &buildState{}
}

func (b *buildState) Update(report *Report, g *graph.Graph) {
	b.mu.Lock()
	b.report = report
	b.graph = g
	b.mu.Unlock()
}

func (b *buildState) Report() (*Report, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.report, b.report != nil
}

func (b *buildState) Graph() (*graph.Graph, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph, b.graph != nil
}
