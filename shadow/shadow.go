// Package shadow implements the shadowing resolver (§4.6): the
// ShadowingEntity that mediates every read and write during an open
// substep, enforcing memoization and cycle detection via the
// resolving[]/resolved[] scratch arrays.
//
// Grounded on spec.md §4.6/§9 directly: no teacher analogue for this
// resolution protocol exists, but the "reuse arrays, bulk-clear at
// end_substep" discipline mirrors the object-pooling discipline the pack
// shows elsewhere (fs/mpather/jogger.go's worker buffer reuse).
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package shadow

import (
	"sync"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/cmn/debug"
	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/extdata"
	"github.com/schmidtdse/josh/handler"
	"github.com/schmidtdse/josh/value"
)

// ResolverScope extends handler.Scope with the entity-relative path
// targets §4.6 requires (here/current/prior/meta/Kind forms). A
// concrete implementation is supplied by the scheduler, which knows how
// to reach patches, collections, and the simulation entity.
type ResolverScope interface {
	handler.Scope
	Prior(attribute string) (value.Value, bool)
	Current(attribute string) (value.Value, bool)
	Here(attribute string) (value.Value, error)
	HereCollection(collection, attribute string) (value.Value, error)
	Meta(attribute string) (value.Value, error)
	OfKind(kind, attribute string) (value.Value, error)
	Registry() *handler.Registry
	EntityState() string
	Rng() extdata.RandomSource
}

// scratchPool reuses resolving/resolved buffers keyed by attribute count
// so differently-sized EntityTypes don't share (and corrupt) buffers
// (§9: "Do not allocate maps/sets per attribute; reuse the arrays").
var scratchPools sync.Map // int(numAttrs) -> *sync.Pool

func poolFor(n int) *sync.Pool {
	if p, ok := scratchPools.Load(n); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{New: func() interface{} {
		return &scratch{
			resolving: make([]bool, n),
			resolved:  make([]value.Value, n),
			hasValue:  make([]bool, n),
		}
	}}
	actual, _ := scratchPools.LoadOrStore(n, p)
	return actual.(*sync.Pool)
}

type scratch struct {
	resolving []bool
	resolved  []value.Value
	hasValue  []bool
}

func (s *scratch) reset() {
	for i := range s.resolving {
		s.resolving[i] = false
		s.hasValue[i] = false
		s.resolved[i] = value.Value{}
	}
}

// ShadowingEntity wraps a mutable entity and a scope, mediating every
// read/write during one open substep (§4.6).
type ShadowingEntity struct {
	inst  *entity.Instance
	scope ResolverScope

	substepName string
	sc          *scratch
	open        bool
}

// New wraps inst for resolution against scope. The wrapper is reusable
// across substeps; call StartSubstep/EndSubstep to bracket each one.
func New(inst *entity.Instance, scope ResolverScope) *ShadowingEntity {
	return &ShadowingEntity{inst: inst, scope: scope}
}

// StartSubstep opens substep on the underlying entity and acquires a
// scratch buffer pair sized to its descriptor.
func (s *ShadowingEntity) StartSubstep(substep string) error {
	if err := s.inst.StartSubstep(substep); err != nil {
		return err
	}
	s.substepName = substep
	s.sc = poolFor(s.inst.Type().NumAttributes()).Get().(*scratch)
	s.sc.reset()
	s.open = true
	return nil
}

// EndSubstep closes the mutation window and returns the scratch buffers
// to the pool.
func (s *ShadowingEntity) EndSubstep() error {
	if err := s.inst.EndSubstep(); err != nil {
		return err
	}
	poolFor(s.inst.Type().NumAttributes()).Put(s.sc)
	s.sc = nil
	s.open = false
	return nil
}

// Get implements §4.6's resolution protocol for get(attribute i).
func (s *ShadowingEntity) Get(i int) (value.Value, error) {
	debug.Assert(s.open, "get called outside an open substep")

	if s.sc.hasValue[i] {
		return s.sc.resolved[i], nil
	}
	if s.sc.resolving[i] {
		name := s.inst.Type().NameAt(i)
		return value.Value{}, cmn.New(cmn.KindCircularDependency, "circular dependency resolving attribute %q", name)
	}
	s.sc.resolving[i] = true
	defer func() { s.sc.resolving[i] = false }()

	typ := s.inst.Type()
	attrName := typ.NameAt(i)

	if typ.IsPassThrough(s.substepName, i) {
		return s.resolvePriorOrNone(i)
	}

	reg := s.scope.Registry()
	group, ok := reg.Lookup(s.scope.EntityState(), attrName, s.substepName)
	if !ok {
		return s.resolvePriorOrNone(i)
	}

	raw, found, err := handler.Evaluate(group, s.scope)
	if err != nil {
		return value.Value{}, err
	}
	if !found {
		return s.resolvePriorOrNone(i)
	}
	v, ok := raw.(value.Value)
	if !ok {
		return value.Value{}, cmn.New(cmn.KindTypeMismatch, "handler for %q returned non-Value %T", attrName, raw)
	}

	s.sc.resolved[i] = v
	s.sc.hasValue[i] = true
	if err := s.inst.SetCurrent(i, v); err != nil {
		return value.Value{}, err
	}
	return v, nil
}

func (s *ShadowingEntity) resolvePriorOrNone(i int) (value.Value, error) {
	if v, ok := s.inst.GetPrior(i); ok {
		s.sc.resolved[i] = v
		s.sc.hasValue[i] = true
		return v, nil
	}
	s.sc.hasValue[i] = false
	return value.Value{}, nil
}

// Set implements §4.6's write protocol: must be inside an open substep;
// sets current[i] and resolved[i].
func (s *ShadowingEntity) Set(i int, v value.Value) error {
	debug.Assert(s.open, "set called outside an open substep")
	if err := s.inst.SetCurrent(i, v); err != nil {
		return err
	}
	s.sc.resolved[i] = v
	s.sc.hasValue[i] = true
	return nil
}

// Instance exposes the wrapped mutable entity, e.g. for the scheduler's
// commit pass.
func (s *ShadowingEntity) Instance() *entity.Instance { return s.inst }
