package scheduler

import (
	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/extdata"
	"github.com/schmidtdse/josh/handler"
	"github.com/schmidtdse/josh/shadow"
	"github.com/schmidtdse/josh/value"
)

// replicateScope implements shadow.ResolverScope for one entity within
// one replicate (§4.6's path-resolution table). It is constructed
// two-phase: the wrapping ShadowingEntity is created after the scope so
// bare-attribute resolution ("attr") can recurse back through the same
// memoized resolver rather than bypassing it.
type replicateScope struct {
	rep  *Replicate
	self *entity.Instance
	se   *shadow.ShadowingEntity
}

func newScope(rep *Replicate, self *entity.Instance) *replicateScope {
	return &replicateScope{rep: rep, self: self}
}

// Resolve implements handler.Scope for generic path forms. Bodies/
// conditions that only need a same-entity attribute by name use this;
// the richer accessors below (Prior, Here, ...) are for expression trees
// that already know which form they need.
func (s *replicateScope) Resolve(path string) (interface{}, error) {
	i, ok := s.self.Type().IndexOf(path)
	if !ok {
		return nil, cmn.New(cmn.KindUnknownAttribute, "unknown attribute %q", path)
	}
	return s.se.Get(i)
}

func (s *replicateScope) Prior(attribute string) (value.Value, bool) {
	i, ok := s.self.Type().IndexOf(attribute)
	if !ok {
		return value.Value{}, false
	}
	return s.self.GetPrior(i)
}

func (s *replicateScope) Current(attribute string) (value.Value, bool) {
	i, ok := s.self.Type().IndexOf(attribute)
	if !ok {
		return value.Value{}, false
	}
	return s.self.GetCurrent(i)
}

// Here resolves here.attr: the patch containing this entity, current
// substep (§4.6).
func (s *replicateScope) Here(attribute string) (value.Value, error) {
	patch := s.rep.patchContaining(s.self)
	if patch == nil {
		return value.Value{}, cmn.New(cmn.KindUnknownAttribute, "entity %s has no containing patch", s.self.ID())
	}
	return s.rep.resolveOn(patch, attribute)
}

// HereCollection resolves here.Coll.attr: every entity in collection
// Coll on this entity's patch, aggregated to a RealizedDistribution
// (§4.6).
func (s *replicateScope) HereCollection(collection, attribute string) (value.Value, error) {
	patch := s.rep.patchContaining(s.self)
	if patch == nil {
		return value.Value{}, cmn.New(cmn.KindUnknownAttribute, "entity %s has no containing patch", s.self.ID())
	}
	members := s.rep.entitiesOn(patch, collection)
	return s.rep.aggregate(members, attribute)
}

// Meta resolves meta.attr: the Simulation entity (§4.6).
func (s *replicateScope) Meta(attribute string) (value.Value, error) {
	sim := s.rep.simulationEntity()
	if sim == nil {
		return value.Value{}, cmn.New(cmn.KindUnknownAttribute, "no Simulation entity in replicate")
	}
	return s.rep.resolveOn(sim, attribute)
}

// OfKind resolves Kind.attr: every entity of kind Kind in scope,
// aggregated to a RealizedDistribution (§4.6).
func (s *replicateScope) OfKind(kind, attribute string) (value.Value, error) {
	members := s.rep.entitiesOfKind(kind)
	return s.rep.aggregate(members, attribute)
}

func (s *replicateScope) Registry() *handler.Registry { return s.rep.registry }
func (s *replicateScope) EntityState() string          { return s.rep.stateOf(s.self) }
func (s *replicateScope) Rng() extdata.RandomSource    { return s.rep.rng }
