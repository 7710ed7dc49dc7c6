package entity

import (
	"sync"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/cmn/debug"
	"github.com/schmidtdse/josh/geom"
	"github.com/schmidtdse/josh/value"
)

// Instance is a mutable entity: an identity, a reference to its shared
// EntityType descriptor, optional geometry, and the dense per-instance
// attribute store (§3/§4.3).
type Instance struct {
	id       string
	typ      *EntityType
	geometry *geom.Shape

	mu sync.Mutex

	current     []value.Value
	currentSet  []bool
	prior       []value.Value
	priorSet    []bool
	onlyOnPrior map[int]bool

	substepOpen bool
	substepName string
}

// NewInstance creates a fresh instance of typ with no current/prior
// values set.
func NewInstance(id string, typ *EntityType, g *geom.Shape) *Instance {
	n := typ.NumAttributes()
	return &Instance{
		id:          id,
		typ:         typ,
		geometry:    g,
		current:     make([]value.Value, n),
		currentSet:  make([]bool, n),
		prior:       make([]value.Value, n),
		priorSet:    make([]bool, n),
		onlyOnPrior: make(map[int]bool),
	}
}

func (e *Instance) ID() string           { return e.id }
func (e *Instance) Type() *EntityType    { return e.typ }
func (e *Instance) Geometry() *geom.Shape { return e.geometry }

// StartSubstep opens a mutation window for name. Exactly one substep may
// be open at a time per entity (§4.3).
func (e *Instance) StartSubstep(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.substepOpen {
		return cmn.New(cmn.KindAssertionFailed, "entity %s: substep %q already open when starting %q", e.id, e.substepName, name)
	}
	e.substepOpen = true
	e.substepName = name
	return nil
}

// EndSubstep closes the mutation window.
func (e *Instance) EndSubstep() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.substepOpen {
		return cmn.New(cmn.KindAssertionFailed, "entity %s: no open substep to end", e.id)
	}
	e.substepOpen = false
	e.substepName = ""
	return nil
}

// IsSubstepOpen reports whether a mutation window is currently open.
func (e *Instance) IsSubstepOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.substepOpen
}

// GetCurrent returns attribute i's value in the current substep, and
// whether it is present.
func (e *Instance) GetCurrent(i int) (value.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current[i], e.currentSet[i]
}

// SetCurrent writes attribute i's current value. Only permitted while a
// substep is open for this entity (§4.3).
func (e *Instance) SetCurrent(i int, v value.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.substepOpen {
		return cmn.New(cmn.KindAssertionFailed, "entity %s: set_current(%d) outside an open substep", e.id, i)
	}
	e.current[i] = v
	e.currentSet[i] = true
	return nil
}

// GetPrior returns attribute i's value from the previous completed
// timestep. prior[] is read-only within a step (§3).
func (e *Instance) GetPrior(i int) (value.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prior[i], e.priorSet[i]
}

// OnlyOnPrior reports whether attribute i exists only on the prior
// entity (e.g. an init-only attribute not produced this step, §3).
func (e *Instance) OnlyOnPrior(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.onlyOnPrior[i]
}

// Commit rotates current -> prior and clears current, per §4.7's
// commit_timestep / §4.3's freeze() invariant:
// "new prior becomes the just-completed current values."
func (e *Instance) Commit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	debug.Assert(!e.substepOpen, "commit called while a substep is still open")
	for i := range e.current {
		if e.currentSet[i] {
			e.prior[i] = e.current[i]
			e.priorSet[i] = true
			delete(e.onlyOnPrior, i)
		} else if !e.priorSet[i] {
			// never produced: stays absent
		} else {
			// had a prior value but nothing refreshed it this step;
			// the attribute becomes prior-only (§3).
			e.onlyOnPrior[i] = true
		}
		e.current[i] = value.Value{}
		e.currentSet[i] = false
	}
}

// FrozenEntity is the deeply-immutable snapshot produced by Freeze().
// Writers may observe it concurrently (§3).
type FrozenEntity struct {
	ID       string
	TypeName string
	Kind     Kind
	Geometry *geom.Shape
	Current  []value.Value
	CurrentOK []bool
	Prior    []value.Value
	PriorOK  []bool
	Names    []string
	Step     int64
	Replicate string
}

// Freeze produces an immutable snapshot including current and prior
// arrays, the descriptor reference, and the geometry (§4.3). Must be
// called after Commit() so snapshot.prior == the just-rotated prior and
// snapshot.current reflects the freshly-cleared current array per the
// component contract — callers that want the pre-commit current values
// should read them before calling Commit.
func (e *Instance) Freeze(step int64, replicate string) *FrozenEntity {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.typ.names))
	copy(names, e.typ.names)
	return &FrozenEntity{
		ID:        e.id,
		TypeName:  e.typ.typeName,
		Kind:      e.typ.kind,
		Geometry:  e.geometry,
		Current:   append([]value.Value(nil), e.current...),
		CurrentOK: append([]bool(nil), e.currentSet...),
		Prior:     append([]value.Value(nil), e.prior...),
		PriorOK:   append([]bool(nil), e.priorSet...),
		Names:     names,
		Step:      step,
		Replicate: replicate,
	}
}
