package scheduler

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/extdata"
	"github.com/schmidtdse/josh/geom"
	"github.com/schmidtdse/josh/handler"
	"github.com/schmidtdse/josh/shadow"
	"github.com/schmidtdse/josh/units"
	"github.com/schmidtdse/josh/value"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func priorOf(s handler.Scope, attr string) (value.Value, bool) {
	return s.(shadow.ResolverScope).Prior(attr)
}

func addHandler(attribute string, delta int64) *handler.HandlerGroup {
	return &handler.HandlerGroup{
		State: handler.WildcardState, Attribute: attribute, Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				prior, ok := priorOf(s, attribute)
				if !ok {
					prior = value.Int64(0, units.Of("count"))
				}
				return value.Apply(value.OpAdd, prior, value.Int64(delta, units.Of("count")))
			},
		}},
	}
}

func initHandler(attribute string, v value.Value) *handler.HandlerGroup {
	return &handler.HandlerGroup{
		State: handler.WildcardState, Attribute: attribute, Substep: "init",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body:      func(s handler.Scope) (interface{}, error) { return v, nil },
		}},
	}
}

func runOneReplicate(t *testing.T, reg *handler.Registry, et *entity.EntityType, inst *entity.Instance, start, end int64) ([]*extdata.Record, error) {
	t.Helper()
	reg.Freeze()
	program := &Program{Registry: reg, Types: map[string]*entity.EntityType{et.TypeName(): et}}
	config := &cmn.Config{Seed: 1, Replicates: 1, StartStep: start, EndStep: end}

	var buf bytes.Buffer
	sink := extdata.NewFileExportSink(nopCloser{&buf}, false)
	rep := NewReplicate("r0", program, config, sink, []*entity.Instance{inst})

	err := rep.Run(context.Background())
	_ = sink.Close()
	return nil, err
}

func TestIdentityStepProducesAscendingAge(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"age"})
	inst := entity.NewInstance("p0", et, geom.NewPoint(0, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(initHandler("age", value.Int64(0, units.Of("count"))))
	_ = reg.Register(addHandler("age", 1))

	_, err := runOneReplicate(t, reg, et, inst, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ageIdx, _ := et.IndexOf("age")
	prior, ok := inst.GetPrior(ageIdx)
	if !ok || prior.Int64() != 3 {
		t.Fatalf("expected age == 3 after 3 step substeps (steps 1..3), got %v ok=%v", prior, ok)
	}
}

// TestUnitConversionAcrossStep mirrors spec.md §8 scenario 2 literally:
// length.init = 100 cm; length.step = length + 1 m, which must resolve to
// 2 m (equivalently 200 cm, since the two are equal under cross-unit
// comparison).
func TestUnitConversionAcrossStep(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"length"})
	inst := entity.NewInstance("p0", et, geom.NewPoint(0, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(initHandler("length", value.Int64(100, units.Of("cm"))))
	reg2 := &handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "length", Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				prior, _ := priorOf(s, "length")
				return value.Apply(value.OpAdd, prior, value.Int64(1, units.Of("m")))
			},
		}},
	}
	_ = reg.Register(reg2)

	_, err := runOneReplicate(t, reg, et, inst, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	i, _ := et.IndexOf("length")
	got, _ := inst.GetPrior(i)

	wantM := value.Int64(2, units.Of("m"))
	if eq, err := value.Equal(got, wantM); err != nil || !eq {
		t.Fatalf("expected 100cm + 1m == 2m, got %v (eq=%v err=%v)", got, eq, err)
	}
	wantCM := value.Int64(200, units.Of("cm"))
	if eq, err := value.Equal(got, wantCM); err != nil || !eq {
		t.Fatalf("expected 100cm + 1m == 200cm, got %v (eq=%v err=%v)", got, eq, err)
	}
}

func TestCreateRequestAddsEntitiesByTypeNameAtNextCommit(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"age"})
	inst := entity.NewInstance("p0", et, geom.NewPoint(0, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(initHandler("age", value.Int64(0, units.Of("count"))))
	_ = reg.Register(addHandler("age", 1))
	reg.Freeze()

	program := &Program{Registry: reg, Types: map[string]*entity.EntityType{et.TypeName(): et}}
	config := &cmn.Config{Seed: 1, Replicates: 1, StartStep: 0, EndStep: 0}
	var buf bytes.Buffer
	sink := extdata.NewFileExportSink(nopCloser{&buf}, false)
	rep := NewReplicate("r0", program, config, sink, []*entity.Instance{inst})

	rep.Create(CreateRequest{
		TypeName: "Patch",
		Count:    2,
		Init: func(i int, child *entity.Instance) {
			idx, _ := et.IndexOf("age")
			_ = child.SetCurrent(idx, value.Int64(int64(i), units.Of("count")))
		},
	})

	if err := rep.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = sink.Close()

	rep.mu.Lock()
	aliveCount := len(rep.alive)
	rep.mu.Unlock()
	if aliveCount != 3 {
		t.Fatalf("expected 3 alive entities (1 original + 2 created), got %d", aliveCount)
	}
}

func TestRemoveRequestDropsEntityAtNextCommit(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"age"})
	a := entity.NewInstance("a", et, geom.NewPoint(0, 0))
	b := entity.NewInstance("b", et, geom.NewPoint(1, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(initHandler("age", value.Int64(0, units.Of("count"))))
	_ = reg.Register(addHandler("age", 1))
	reg.Freeze()

	program := &Program{Registry: reg, Types: map[string]*entity.EntityType{et.TypeName(): et}}
	config := &cmn.Config{Seed: 1, Replicates: 1, StartStep: 0, EndStep: 0}
	var buf bytes.Buffer
	sink := extdata.NewFileExportSink(nopCloser{&buf}, false)
	rep := NewReplicate("r0", program, config, sink, []*entity.Instance{a, b})

	rep.Remove("b")

	if err := rep.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = sink.Close()

	rep.mu.Lock()
	_, stillThere := rep.byID["b"]
	aliveCount := len(rep.alive)
	rep.mu.Unlock()
	if stillThere || aliveCount != 1 {
		t.Fatalf("expected entity %q removed and 1 alive entity remaining, got alive=%d stillThere=%v", "b", aliveCount, stillThere)
	}
}

func TestCycleDetectionFailsReplicateWithNoCommit(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"a", "b"})
	inst := entity.NewInstance("p0", et, geom.NewPoint(0, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(&handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "a", Substep: "init",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				rs := s.(shadow.ResolverScope)
				v, err := rs.Current("b")
				_ = v
				_ = err
				return value.Int64(1, units.Of("count")), nil
			},
		}},
	})
	_ = reg.Register(&handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "a", Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				v, err := s.Resolve("b")
				if err != nil {
					return nil, err
				}
				return value.Apply(value.OpAdd, v.(value.Value), value.Int64(1, units.Of("count")))
			},
		}},
	})
	_ = reg.Register(&handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "b", Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				v, err := s.Resolve("a")
				if err != nil {
					return nil, err
				}
				return value.Apply(value.OpAdd, v.(value.Value), value.Int64(1, units.Of("count")))
			},
		}},
	})

	_, err := runOneReplicate(t, reg, et, inst, 0, 1)
	if err == nil {
		t.Fatal("expected CircularDependency error from step substep")
	}
	if cmn.KindOf(err) != cmn.KindCircularDependency {
		t.Fatalf("expected CircularDependency kind, got %v", cmn.KindOf(err))
	}
	aIdx, _ := et.IndexOf("a")
	if got, ok := inst.GetPrior(aIdx); !ok || got.Int64() != 1 {
		t.Fatalf("expected a to remain at its step-0 committed value 1 after the failed step, got %v ok=%v", got, ok)
	}
}

// TestPriorSemanticsMemoizeAcrossSteps mirrors spec.md §8 scenario 6
// literally: x.init=10, x.step=prior.x*2 doubles every step (10, 20, 40,
// 80 across 3 step substeps), and a second attribute that reads x mid
// substep observes the same in-progress memoized value the step substep
// itself produces, not x's prior (pre-step) value.
func TestPriorSemanticsMemoizeAcrossSteps(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"x", "shadowOfX"})
	inst := entity.NewInstance("p0", et, geom.NewPoint(0, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(initHandler("x", value.Int64(10, units.Of("count"))))
	_ = reg.Register(&handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "x", Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				prior, _ := priorOf(s, "x")
				return value.Apply(value.OpMul, prior, value.Int64(2, units.Of("count")))
			},
		}},
	})
	// shadowOfX resolves x within the same substep: it must observe x's
	// freshly-memoized current value (the doubled result), not x's prior.
	_ = reg.Register(&handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "shadowOfX", Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				v, err := s.Resolve("x")
				if err != nil {
					return nil, err
				}
				return v.(value.Value), nil
			},
		}},
	})
	_ = reg.Register(initHandler("shadowOfX", value.Int64(0, units.Of("count"))))

	_, err := runOneReplicate(t, reg, et, inst, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	xIdx, _ := et.IndexOf("x")
	gotX, _ := inst.GetPrior(xIdx)
	if gotX.Int64() != 80 {
		t.Fatalf("expected x == 10*2^3 == 80 after 3 step substeps, got %v", gotX.Int64())
	}

	shadowIdx, _ := et.IndexOf("shadowOfX")
	gotShadow, _ := inst.GetPrior(shadowIdx)
	if gotShadow.Int64() != gotX.Int64() {
		t.Fatalf("expected shadowOfX to observe x's in-progress memoized value %v, got %v", gotX.Int64(), gotShadow.Int64())
	}
}

// TestAssertionFailedAbortsReplicateWithNoCommit mirrors
// TestCycleDetectionFailsReplicateWithNoCommit's structure for §7's
// AssertionFailed path: a handler body raises AssertionFailed, and the
// replicate must fail that step without committing a snapshot.
func TestAssertionFailedAbortsReplicateWithNoCommit(t *testing.T) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"age"})
	inst := entity.NewInstance("p0", et, geom.NewPoint(0, 0))

	reg := handler.NewRegistry()
	_ = reg.Register(initHandler("age", value.Int64(0, units.Of("count"))))
	_ = reg.Register(&handler.HandlerGroup{
		State: handler.WildcardState, Attribute: "age", Substep: "step",
		Handlers: []handler.Handler{{
			Condition: func(s handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				return nil, cmn.New(cmn.KindAssertionFailed, "age must stay non-negative (span %s:%d:%d)", "sim.josh", 12, 5)
			},
		}},
	})

	_, err := runOneReplicate(t, reg, et, inst, 0, 1)
	if err == nil {
		t.Fatal("expected AssertionFailed error from step substep")
	}
	if cmn.KindOf(err) != cmn.KindAssertionFailed {
		t.Fatalf("expected AssertionFailed kind, got %v", cmn.KindOf(err))
	}

	// The step-0 init substep committed age=0 before the step-1 failure;
	// that failure must abort step 1 without a further commit, leaving
	// age at its last successfully committed value rather than whatever
	// the failed handler would have produced.
	ageIdx, _ := et.IndexOf("age")
	got, ok := inst.GetPrior(ageIdx)
	if !ok || got.Int64() != 0 {
		t.Fatalf("expected age to remain at its last committed value 0 after the AssertionFailed step, got %v ok=%v", got, ok)
	}
}
