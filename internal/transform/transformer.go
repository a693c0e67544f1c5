// Package transform holds carrier-specific transformers: registered
// procedures that produce normalized output views from a carrier's raw
// statement without manual field mapping.
package transform

import (
	"strings"

	"github.com/insuranceops/commission-processor/internal/models"
)

// Transformer converts one carrier's raw statement rows into canonical
// template rows for the output kinds it supports.
type Transformer interface {
	// Carrier returns the carrier name this transformer belongs to.
	Carrier() string

	// Key is the stable identifier stored on the carrier profile.
	Key() string

	// Kinds lists the output kinds this transformer can attempt, in
	// declaration order. Fan-out results preserve this order.
	Kinds() []models.OutputKind

	// Available reports whether this specific file carries the data needed
	// for the given output kind.
	Available(kind models.OutputKind, columns []string) (bool, error)

	// Transform produces canonical rows for the given kind. The returned
	// warnings describe references that could not be resolved, such as
	// plan descriptions missing from the lookup tables.
	Transform(kind models.OutputKind, src models.Table) (models.Table, []string, error)
}

// Registry resolves carriers to their registered transformers.
type Registry struct {
	byKey     map[string]Transformer
	byCarrier map[string]Transformer
}

// NewRegistry builds the registry of all known transformers.
func NewRegistry(cfg *ConfigSet) *Registry {
	r := &Registry{
		byKey:     make(map[string]Transformer),
		byCarrier: make(map[string]Transformer),
	}
	r.add(&ManhattanLife{cfg: cfg})
	return r
}

func (r *Registry) add(t Transformer) {
	r.byKey[t.Key()] = t
	r.byCarrier[strings.ToLower(t.Carrier())] = t
}

// Lookup finds a transformer by its profile key or carrier name.
func (r *Registry) Lookup(keyOrCarrier string) (Transformer, bool) {
	if t, ok := r.byKey[keyOrCarrier]; ok {
		return t, true
	}
	t, ok := r.byCarrier[strings.ToLower(strings.TrimSpace(keyOrCarrier))]
	return t, ok
}

// KeyFor returns the transformer key to store on a profile for the given
// carrier name, or "" when the carrier has no transformer.
func (r *Registry) KeyFor(carrier string) string {
	if t, ok := r.byCarrier[strings.ToLower(strings.TrimSpace(carrier))]; ok {
		return t.Key()
	}
	return ""
}
