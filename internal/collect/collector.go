// Package collect defines the evidence collector contract, the synthetic
// collector set, and the per-iteration plan mapper that decides which
// collectors run.
package collect

import (
	"context"

	"github.com/rasike-dev/chronosops/internal/model"
)

// Context is the scope one collector call operates over. It is derived from
// an approved request's scope, falling back to the session window and hints.
type Context struct {
	IncidentID string
	Window     model.Window
	Hints      []string
	MaxItems   int
}

// Collector fetches one kind of evidence. A collector returns (nil, nil)
// when it has nothing to contribute for the given scope; errors are
// isolated per call by the loop controller and never abort sibling
// collectors.
type Collector interface {
	Kind() model.EvidenceKind
	Source() string
	Collect(ctx context.Context, cc Context) (*model.EvidenceArtifact, error)
}

// Registry maps evidence kinds to their collectors.
type Registry struct {
	byKind map[model.EvidenceKind]Collector
}

// NewRegistry builds a registry from the given collectors. Later collectors
// of the same kind replace earlier ones.
func NewRegistry(collectors ...Collector) *Registry {
	r := &Registry{byKind: make(map[model.EvidenceKind]Collector, len(collectors))}
	for _, c := range collectors {
		r.byKind[c.Kind()] = c
	}
	return r
}

// Get returns the collector for kind, or false when none is registered.
func (r *Registry) Get(kind model.EvidenceKind) (Collector, bool) {
	c, ok := r.byKind[kind]
	return c, ok
}

// Kinds returns the registered kinds in collectable declaration order.
func (r *Registry) Kinds() []model.EvidenceKind {
	var out []model.EvidenceKind
	for _, k := range model.CollectableKinds {
		if _, ok := r.byKind[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
