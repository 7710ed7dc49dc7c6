// Package handler implements the compiled event-handler registry (§4.4):
// ordered handler sequences keyed by (state, attribute, event), plus the
// two descriptor-level derived caches the resolver consults before
// falling back to handler lookup.
//
// Grounded on xaction/xreg's provider-registration pattern: providers are
// registered once by kind at init time and looked up by kind string at
// run time (xreg.RegisterBucketXact(&Provider{...})); Registry.Register /
// Registry.Lookup mirror that registration-then-lookup shape, keyed here
// by the richer (state, attribute, substep) triple spec.md requires.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package handler

import (
	"sort"
	"sync"

	"github.com/schmidtdse/josh/cmn"
)

// WildcardState matches any entity state when no state-specific group is
// registered for (state, attribute, substep) (§4.6 step 5).
const WildcardState = "*"

// Scope is the minimal evaluation context a Handler's Condition/Body
// closures receive. It is supplied by the caller (the shadowing
// resolver); handler itself has no notion of entities or attributes,
// mirroring the DSL front-end's "compiled expression tree" contract in
// §6: the core treats conditions and bodies as opaque callables.
type Scope interface {
	Resolve(path string) (interface{}, error)
}

// Condition reports whether this handler fires given scope.
type Condition func(scope Scope) (bool, error)

// Body computes this handler's contributed value given scope.
type Body func(scope Scope) (interface{}, error)

// SourceSpan locates a handler in its originating program text, carried
// through to AssertionFailed/error messages (§7).
type SourceSpan struct {
	File string
	Line int
	Col  int
}

// Handler is one conditional clause within a HandlerGroup.
type Handler struct {
	Condition Condition
	Body      Body
	Span      SourceSpan
}

// HandlerGroup is the ordered handler sequence for one (state, attribute,
// substep) key (§4.4).
type HandlerGroup struct {
	State     string
	Attribute string
	Substep   string
	Handlers  []Handler
}

type key struct {
	state     string
	attribute string
	substep   string
}

// Registry is the immutable-after-build handler table (§4.4's "built
// from the parsed program ... immutable thereafter").
type Registry struct {
	mu     sync.RWMutex
	groups map[key]*HandlerGroup

	// commonHandlers[attribute] is the priority-ordered group list tried
	// irrespective of entity state, per §4.4's common_handlers cache.
	commonHandlers map[string][]*HandlerGroup
	built          bool
}

// NewRegistry returns an empty, mutable registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		groups:         make(map[key]*HandlerGroup),
		commonHandlers: make(map[string][]*HandlerGroup),
	}
}

// Register adds a HandlerGroup under its (state, attribute, substep) key.
// Must be called before Freeze; returns an error if called after Freeze
// to preserve the "immutable thereafter" contract.
func (r *Registry) Register(g *HandlerGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return cmn.New(cmn.KindAssertionFailed, "handler registry already frozen: cannot register %s/%s/%s", g.State, g.Attribute, g.Substep)
	}
	k := key{state: g.State, attribute: g.Attribute, substep: g.Substep}
	r.groups[k] = g
	if g.State == WildcardState {
		r.commonHandlers[g.Attribute] = append(r.commonHandlers[g.Attribute], g)
	}
	return nil
}

// Freeze stabilizes iteration order of the common-handler cache and
// marks the registry read-only. Safe to call once after all Register
// calls complete.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for attr := range r.commonHandlers {
		groups := r.commonHandlers[attr]
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Substep < groups[j].Substep })
	}
	r.built = true
}

// Lookup implements §4.6 step 5: look up (state, attribute, substep); if
// absent, fall back to (wildcard, attribute, substep). ok is false if
// neither is registered, signalling the caller should fall back to prior
// (step 4 of the resolution protocol).
func (r *Registry) Lookup(state, attribute, substep string) (*HandlerGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.groups[key{state: state, attribute: attribute, substep: substep}]; ok {
		return g, true
	}
	if g, ok := r.groups[key{state: WildcardState, attribute: attribute, substep: substep}]; ok {
		return g, true
	}
	return nil, false
}

// CommonHandlers returns the priority-ordered group list for attribute,
// irrespective of entity state (§4.4's common_handlers cache). Consulted
// by entity.EntityType's pass-through wiring (scheduler.NewReplicate) to
// determine which substeps a wildcard-state handler covers for attribute.
func (r *Registry) CommonHandlers(attribute string) []*HandlerGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*HandlerGroup(nil), r.commonHandlers[attribute]...)
}

// HasStateSpecificGroup reports whether any non-wildcard-state group is
// registered for (attribute, substep). Combined with CommonHandlers, this
// gives the complete coverage picture the pass-through cache needs: an
// attribute is pass-through in a substep only if neither a wildcard nor a
// state-specific group exists for it there.
func (r *Registry) HasStateSpecificGroup(attribute, substep string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := range r.groups {
		if k.attribute == attribute && k.substep == substep && k.state != WildcardState {
			return true
		}
	}
	return false
}

// Evaluate runs g's handlers in order under scope; the first whose
// condition evaluates true supplies the value (§4.6 step 6). found is
// false if every condition evaluated false, signalling fall back to
// prior/none.
func Evaluate(g *HandlerGroup, scope Scope) (value interface{}, found bool, err error) {
	for _, h := range g.Handlers {
		ok, err := h.Condition(scope)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		v, err := h.Body(scope)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	return nil, false, nil
}
