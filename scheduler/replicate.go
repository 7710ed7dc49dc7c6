// Package scheduler implements the substep scheduler (C7): the outer
// timestep/substep loop driving one replicate from start to terminal
// step, commit semantics, and cross-replicate parallel execution.
//
// Grounded on xaction/xrun/bucket.go's XactBase-style lifecycle
// (Start/Finished/Abort) for Replicate's run states, and on
// fs/mpather/jogger.go's errgroup-driven parallel-worker pattern for
// running many replicates concurrently with shared read-only state
// (descriptors, registry, intern caches) and no shared mutable state.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package scheduler

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/cmn/debug"
	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/extdata"
	"github.com/schmidtdse/josh/geom"
	"github.com/schmidtdse/josh/handler"
	"github.com/schmidtdse/josh/shadow"
	"github.com/schmidtdse/josh/units"
	"github.com/schmidtdse/josh/value"
)

// Status is a replicate's run state, mirroring the teacher's
// XactBase Start/Finished/Abort lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinished
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusFinished:
		return "Finished"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CreateRequest queues "create N count of Kind" (§4.7); applied at
// commit, new instances become alive starting next step.
type CreateRequest struct {
	TypeName string
	Type     *entity.EntityType
	Count    int
	Init     func(i int, inst *entity.Instance) // optional per-instance seed, i in [0,Count)
}

// RemoveRequest queues an entity for removal; applied at commit.
type RemoveRequest struct {
	ID string
}

// Program is the opaque, immutable input the scheduler consumes (§6):
// the parsed simulation's entity types and compiled handler registry
// (initial instances are passed separately to NewReplicate). The core treats the DSL/AST that produced it as out
// of scope; only this contract matters.
type Program struct {
	Registry *handler.Registry
	Types    map[string]*entity.EntityType
}

// Replicate drives one deterministic run given (program, config, seed)
// (§4.7). Replicates share no mutable state with one another.
type Replicate struct {
	ID      string
	program *Program
	config  *cmn.Config
	sink    extdata.ExportSink
	rng     *extdata.SeededSource
	registry *handler.Registry

	mu     sync.Mutex
	alive  []*entity.Instance
	byID   map[string]*entity.Instance
	shadows map[string]*shadow.ShadowingEntity

	pendingCreate []CreateRequest
	pendingRemove map[string]bool

	spatial      *geom.Index
	spatialGroup singleflight.Group
	spatialBuilt int64 // timestep the current spatial index was built for

	status   Status
	cancel   context.CancelFunc
	step     int64
	nextSeq  int
}

// NewReplicate constructs a replicate ready to Run. initial is the
// starting alive-entity set (typically the patch grid plus the
// Simulation entity).
func NewReplicate(id string, program *Program, config *cmn.Config, sink extdata.ExportSink, initial []*entity.Instance) *Replicate {
	r := &Replicate{
		ID:            id,
		program:       program,
		config:        config,
		sink:          sink,
		rng:           extdata.NewSeededSource(config.Seed),
		registry:      program.Registry,
		byID:          make(map[string]*entity.Instance, len(initial)),
		shadows:       make(map[string]*shadow.ShadowingEntity, len(initial)),
		pendingRemove: make(map[string]bool),
		status:        StatusPending,
	}
	wirePassThrough(program)
	for _, inst := range initial {
		r.addAlive(inst)
	}
	return r
}

// substepNames enumerates every substep a replicate ever drives
// (substepOrder's vocabulary), independent of any one replicate's
// start/end step.
var substepNames = []string{"init", "step", "end"}

// wirePassThrough populates each type's pass-through cache (§4.4's
// attributes_without_handlers) from the frozen registry: an attribute is
// pass-through in a substep when neither a common (wildcard-state) nor a
// state-specific handler group is registered for it there, so the
// resolver can skip straight to prior/none instead of consulting the
// registry on every Get.
func wirePassThrough(program *Program) {
	for _, typ := range program.Types {
		for _, substep := range substepNames {
			var indices []int
			for _, i := range typ.Indices() {
				if !hasHandlerFor(program.Registry, typ.NameAt(i), substep) {
					indices = append(indices, i)
				}
			}
			typ.SetPassThrough(substep, indices)
		}
	}
}

func hasHandlerFor(reg *handler.Registry, attribute, substep string) bool {
	for _, g := range reg.CommonHandlers(attribute) {
		if g.Substep == substep {
			return true
		}
	}
	return reg.HasStateSpecificGroup(attribute, substep)
}

func (r *Replicate) addAlive(inst *entity.Instance) {
	r.alive = append(r.alive, inst)
	r.byID[inst.ID()] = inst
	sc := newScope(r, inst)
	se := shadow.New(inst, sc)
	sc.se = se
	r.shadows[inst.ID()] = se
}

// substepOrder implements §4.7's "usually step only, except t==start_step
// uses init; last step adds end".
func substepOrder(t, start, end int64) []string {
	order := []string{"step"}
	if t == start {
		order = []string{"init"}
	}
	if t == end {
		order = append(order, "end")
	}
	return order
}

// Run drives the replicate from config.StartStep through config.EndStep
// inclusive, honoring ctx cancellation between entities and between
// substeps (§5).
func (r *Replicate) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	r.mu.Lock()
	r.status = StatusRunning
	r.mu.Unlock()

	for t := r.config.StartStep; t <= r.config.EndStep; t++ {
		r.step = t
		for _, substep := range substepOrder(t, r.config.StartStep, r.config.EndStep) {
			if err := ctx.Err(); err != nil {
				r.finish(StatusCancelled)
				return cmn.Wrap(cmn.KindCancelled, err, "replicate %s cancelled before substep %q at step %d", r.ID, substep, t)
			}
			if err := r.runSubstep(ctx, substep); err != nil {
				r.finish(StatusFailed)
				return err
			}
		}
		if err := r.commitTimestep(); err != nil {
			r.finish(StatusFailed)
			return err
		}
	}
	r.finish(StatusFinished)
	return nil
}

func (r *Replicate) finish(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Cancel requests cooperative cancellation (§5); the in-progress substep
// is abandoned without commit.
func (r *Replicate) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Replicate) StatusNow() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Replicate) runSubstep(ctx context.Context, substep string) error {
	r.mu.Lock()
	alive := append([]*entity.Instance(nil), r.alive...)
	r.mu.Unlock()

	// deterministic iteration order, per §5's export-order guarantee.
	sort.Slice(alive, func(i, j int) bool { return alive[i].ID() < alive[j].ID() })

	for _, inst := range alive {
		if err := ctx.Err(); err != nil {
			return cmn.Wrap(cmn.KindCancelled, err, "replicate %s cancelled mid-substep %q", r.ID, substep)
		}
		se := r.shadows[inst.ID()]
		if err := se.StartSubstep(substep); err != nil {
			return err
		}
		for _, i := range inst.Type().Indices() {
			if _, err := se.Get(i); err != nil {
				_ = se.EndSubstep()
				return err
			}
		}
		if err := se.EndSubstep(); err != nil {
			return err
		}
	}
	return nil
}

// commitTimestep implements §4.7's commit semantics: rotate current ->
// prior, clear current, apply create/remove deltas, emit a frozen
// snapshot per live entity.
func (r *Replicate) commitTimestep() error {
	r.mu.Lock()
	alive := append([]*entity.Instance(nil), r.alive...)
	r.mu.Unlock()

	sort.Slice(alive, func(i, j int) bool { return alive[i].ID() < alive[j].ID() })

	for _, inst := range alive {
		debug.Assert(!inst.IsSubstepOpen(), "commit: instance must not have an open substep")
		inst.Commit()
		snap := inst.Freeze(r.step, r.ID)
		if err := r.sink.Write(snap, r.step); err != nil {
			return err
		}
	}
	if err := r.sink.Flush(); err != nil {
		return err
	}
	return r.applyDeltas()
}

func (r *Replicate) applyDeltas() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.pendingRemove {
		delete(r.byID, id)
		delete(r.shadows, id)
	}
	if len(r.pendingRemove) > 0 {
		var kept []*entity.Instance
		for _, inst := range r.alive {
			if !r.pendingRemove[inst.ID()] {
				kept = append(kept, inst)
			}
		}
		r.alive = kept
		r.pendingRemove = make(map[string]bool)
	}

	for _, req := range r.pendingCreate {
		typ := req.Type
		if typ == nil {
			typ = r.program.Types[req.TypeName]
		}
		if typ == nil {
			return cmn.New(cmn.KindUnknownAttribute, "create request: unknown entity type %q", req.TypeName)
		}
		for i := 0; i < req.Count; i++ {
			r.nextSeq++
			id := cmn.GenUUID()
			inst := entity.NewInstance(id, typ, nil)
			if req.Init != nil {
				_ = inst.StartSubstep("init")
				req.Init(i, inst)
				_ = inst.EndSubstep()
				inst.Commit()
			}
			r.addAlive(inst)
		}
	}
	r.pendingCreate = nil
	// invalidate the spatial index: the alive set changed.
	r.spatial = nil
	return nil
}

// Create queues a create request, applied at the next commit (§4.7).
func (r *Replicate) Create(req CreateRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingCreate = append(r.pendingCreate, req)
}

// Remove queues id for removal, applied at the next commit (§4.7).
func (r *Replicate) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingRemove[id] = true
}

// spatialIndex lazily builds (or rebuilds, after a create/remove delta)
// the patch index for the current timestep (§4.5, §9). Concurrent
// callers within the same replicate dedupe onto a single build via
// singleflight, even though a replicate's own substep evaluation is
// single-threaded — external-data-triggered reentrant queries during one
// substep are the scenario this guards against.
func (r *Replicate) spatialIndex() *geom.Index {
	r.mu.Lock()
	if r.spatial != nil {
		defer r.mu.Unlock()
		return r.spatial
	}
	r.mu.Unlock()

	v, _, _ := r.spatialGroup.Do("build", func() (interface{}, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.spatial != nil {
			return r.spatial, nil
		}
		var items []geom.Located
		for _, inst := range r.alive {
			if inst.Type().Kind() == entity.KindPatch {
				items = append(items, locatedInstance{inst})
			}
		}
		r.spatial = geom.NewIndex(items)
		return r.spatial, nil
	})
	return v.(*geom.Index)
}

type locatedInstance struct{ inst *entity.Instance }

func (l locatedInstance) ID() string        { return l.inst.ID() }
func (l locatedInstance) Geometry() *geom.Shape { return l.inst.Geometry() }

func (r *Replicate) patchContaining(inst *entity.Instance) *entity.Instance {
	g := inst.Geometry()
	if g == nil {
		return nil
	}
	for _, loc := range r.spatialIndex().Lookup(g) {
		return r.byID[loc.ID()]
	}
	return nil
}

func (r *Replicate) entitiesOn(patch *entity.Instance, collection string) []*entity.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	patchGeom := patch.Geometry()
	var out []*entity.Instance
	for _, inst := range r.alive {
		if inst.Type().TypeName() != collection {
			continue
		}
		g := inst.Geometry()
		if g != nil && patchGeom != nil && g.CenterX == patchGeom.CenterX && g.CenterY == patchGeom.CenterY {
			out = append(out, inst)
		}
	}
	return out
}

func (r *Replicate) entitiesOfKind(kindName string) []*entity.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Instance
	for _, inst := range r.alive {
		if inst.Type().TypeName() == kindName {
			out = append(out, inst)
		}
	}
	return out
}

func (r *Replicate) simulationEntity() *entity.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.alive {
		if inst.Type().Kind() == entity.KindSimulation {
			return inst
		}
	}
	return nil
}

// resolveOn reads attribute from target's own memoized resolver.
func (r *Replicate) resolveOn(target *entity.Instance, attribute string) (value.Value, error) {
	i, ok := target.Type().IndexOf(attribute)
	if !ok {
		return value.Value{}, cmn.New(cmn.KindUnknownAttribute, "unknown attribute %q on %s", attribute, target.Type().TypeName())
	}
	if v, ok := target.GetCurrent(i); ok {
		return v, nil
	}
	if v, ok := target.GetPrior(i); ok {
		return v, nil
	}
	return value.Value{}, nil
}

func (r *Replicate) aggregate(members []*entity.Instance, attribute string) (value.Value, error) {
	var values []value.Value
	var u *units.Units
	for _, m := range members {
		v, err := r.resolveOn(m, attribute)
		if err != nil {
			return value.Value{}, err
		}
		values = append(values, v)
		u = v.Units()
	}
	return value.Dist(value.NewDistribution(values, u)), nil
}

func (r *Replicate) stateOf(inst *entity.Instance) string {
	i, ok := inst.Type().IndexOf("state")
	if !ok {
		return handler.WildcardState
	}
	if v, ok := inst.GetCurrent(i); ok {
		return v.String()
	}
	if v, ok := inst.GetPrior(i); ok {
		return v.String()
	}
	return handler.WildcardState
}
