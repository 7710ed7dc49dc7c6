// Package entity implements the simulation core's attribute store (§4.3)
// and entity/descriptor data model (§3): a shared, immutable EntityType
// descriptor referenced by identity from many mutable per-instance
// Instances, with a dense array-indexed attribute store replacing
// name-keyed maps.
//
// Grounded on cluster/map.go's Smap/Snode split: Smap plays the role of a
// small, shared, rarely-mutated descriptor referenced by many Snode
// instances; EntityType plays that role here, Instance plays Snode's.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package entity

import (
	"sort"

	"github.com/OneOfOne/xxhash"
)

// Kind is an entity's identity category (§3).
type Kind int

const (
	KindSimulation Kind = iota
	KindPatch
	KindAgent
	KindDisturbance
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindSimulation:
		return "Simulation"
	case KindPatch:
		return "Patch"
	case KindAgent:
		return "Agent"
	case KindDisturbance:
		return "Disturbance"
	case KindExternal:
		return "External"
	default:
		return "Unknown"
	}
}

// HandlerGroupKey is a (state, attribute index, substep) cache key
// declared in this package; package handler exports no key type of its
// own and keys its registry by attribute name.
type HandlerGroupKey struct {
	State     string
	Attribute int
	Substep   string
}

// EntityType is the immutable, shared-by-pointer descriptor for all
// instances of a given kind (§3's "EntityType descriptor"). Built once at
// program load; the only mutation afterward is SetPassThrough filling the
// per-substep pass-through cache. Every Instance of the same kind
// references the same *EntityType.
type EntityType struct {
	typeName string
	kind     Kind

	// names is the alphabetically sorted attribute name list (stable
	// ordering -> stable indices), per §3.
	names []string
	// index maps name -> its position in names.
	index map[string]int

	// passThrough[substep] is the set of attribute indices that lack
	// handlers in that substep (§3's "pass-through" cache, §4.4).
	passThrough map[string]map[int]bool

	digest uint64
}

// NewEntityType builds a descriptor from an unsorted attribute name list.
// Names are sorted once here so indices are stable for the type's
// lifetime (§3 invariant: "Indices are contiguous [0,n) and identical for
// every instance of a given type").
func NewEntityType(typeName string, kind Kind, attrNames []string) *EntityType {
	names := append([]string(nil), attrNames...)
	sort.Strings(names)
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	h := xxhash.New64()
	_, _ = h.WriteString(typeName)
	et := &EntityType{
		typeName:    typeName,
		kind:        kind,
		names:       names,
		index:       idx,
		passThrough: make(map[string]map[int]bool),
		digest:      h.Sum64(),
	}
	return et
}

func (et *EntityType) TypeName() string  { return et.typeName }
func (et *EntityType) Kind() Kind        { return et.kind }
func (et *EntityType) NumAttributes() int { return len(et.names) }
func (et *EntityType) Digest() uint64    { return et.digest }

// NameAt returns the attribute name at index i (reverse array, §3).
func (et *EntityType) NameAt(i int) string { return et.names[i] }

// IndexOf resolves a name to its stable index, or (-1, false) if unknown.
// Expression evaluators that receive a name are expected to cache the
// resulting index and thereafter use integer access (§4.3's "layout
// rationale").
func (et *EntityType) IndexOf(name string) (int, bool) {
	i, ok := et.index[name]
	return i, ok
}

// SetPassThrough records, for a given substep, which attribute indices
// have no handler at all in that substep (§4.4's
// attributes_without_handlers cache). Called once per scheduler.Replicate
// construction (scheduler.NewReplicate, from the frozen handler.Registry);
// read-only thereafter.
func (et *EntityType) SetPassThrough(substep string, indices []int) {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	et.passThrough[substep] = set
}

// IsPassThrough reports whether attribute i has no handler in substep.
func (et *EntityType) IsPassThrough(substep string, i int) bool {
	set, ok := et.passThrough[substep]
	if !ok {
		return false
	}
	return set[i]
}

// Indices returns 0..NumAttributes()-1, the iteration order the scheduler
// uses to force resolution of every attribute within a substep (§4.7).
func (et *EntityType) Indices() []int {
	out := make([]int, len(et.names))
	for i := range out {
		out[i] = i
	}
	return out
}
