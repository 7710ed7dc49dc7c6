// Package testutil provides shared, test-only helpers for assembling
// minimal scenarios across entity/handler/shadow/scheduler/query package
// tests, and for the cmd/josh built-in demo scenario.
//
// Grounded on devtools/tutils/common.go's role: a package of shared
// low-level helpers that test (and, here, the demo CLI path) code reaches
// for instead of re-deriving fixture boilerplate per package.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package testutil

import (
	"fmt"

	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/geom"
	"github.com/schmidtdse/josh/handler"
	"github.com/schmidtdse/josh/shadow"
	"github.com/schmidtdse/josh/units"
	"github.com/schmidtdse/josh/value"
)

// ConstantHandler builds a HandlerGroup whose single unconditional
// handler always returns v, for attribute in substep across every state.
func ConstantHandler(attribute, substep string, v value.Value) *handler.HandlerGroup {
	return &handler.HandlerGroup{
		State: handler.WildcardState, Attribute: attribute, Substep: substep,
		Handlers: []handler.Handler{{
			Condition: func(handler.Scope) (bool, error) { return true, nil },
			Body:      func(handler.Scope) (interface{}, error) { return v, nil },
		}},
	}
}

// IncrementHandler builds a HandlerGroup that adds delta to attribute's
// prior value each step, defaulting to zero when no prior exists (first
// step after init). Reads via ResolverScope.Prior rather than Resolve:
// re-entering Resolve for the same attribute/substep would re-invoke this
// same handler and trip cycle detection.
func IncrementHandler(attribute, substep string, delta int64, u *units.Units) *handler.HandlerGroup {
	return &handler.HandlerGroup{
		State: handler.WildcardState, Attribute: attribute, Substep: substep,
		Handlers: []handler.Handler{{
			Condition: func(handler.Scope) (bool, error) { return true, nil },
			Body: func(s handler.Scope) (interface{}, error) {
				rs := s.(shadow.ResolverScope)
				prior, ok := rs.Prior(attribute)
				if !ok {
					prior = value.Int64(0, u)
				}
				return value.Apply(value.OpAdd, prior, value.Int64(delta, u))
			},
		}},
	}
}

// GridScenario builds a deterministic width*height Patch grid with an
// "age" attribute incremented by one each step, the canonical demo/test
// scenario used by cmd/josh's run/test commands and by package tests that
// need a ready-made multi-entity replicate.
func GridScenario(width, height int) (*entity.EntityType, []*entity.Instance, *handler.Registry) {
	et := entity.NewEntityType("Patch", entity.KindPatch, []string{"age"})

	reg := handler.NewRegistry()
	_ = reg.Register(ConstantHandler("age", "init", value.Int64(0, units.Of("count"))))
	_ = reg.Register(IncrementHandler("age", "step", 1, units.Of("count")))
	reg.Freeze()

	instances := make([]*entity.Instance, 0, width*height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			id := cellID(x, y)
			inst := entity.NewInstance(id, et, geom.NewSquare(float64(x), float64(y), 1.0))
			instances = append(instances, inst)
		}
	}
	return et, instances, reg
}

func cellID(x, y int) string {
	return fmt.Sprintf("patch-%d-%d", x, y)
}
