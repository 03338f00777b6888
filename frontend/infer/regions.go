package infer

import (
	"slices"

	"github.com/benbjohnson/immutable"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/frontend/ty"
	"github.com/cottand/dropck/util"
)

// OutlivesEnvironment is what is known about regions inside an item: the
// transitive closure of the region bounds of its ParamEnv.
type OutlivesEnvironment struct {
	facts      regionPairs
	typeBounds []ty.TypeOutlives
}

type regionPair = util.Pair[ty.Region, ty.Region]

// regionPairs is a persistent set of (longer, shorter) pairs. Pairs are
// bucketed by hash and compared structurally, so a collision never makes
// two distinct pairs equal.
type regionPairs struct {
	buckets *immutable.Map[uint64, []regionPair]
}

func newRegionPairs() regionPairs {
	return regionPairs{buckets: immutable.NewMap[uint64, []regionPair](immutable.NewHasher(uint64(0)))}
}

func outlivesKey(longer, shorter ty.Region) uint64 {
	return longer.Hash()*31 ^ shorter.Hash()
}

func (s regionPairs) Has(longer, shorter ty.Region) bool {
	bucket, _ := s.buckets.Get(outlivesKey(longer, shorter))
	for _, p := range bucket {
		if ty.Equal(p.Fst, longer) && ty.Equal(p.Snd, shorter) {
			return true
		}
	}
	return false
}

// Add returns the set with the pair added, and whether it was missing
func (s regionPairs) Add(longer, shorter ty.Region) (regionPairs, bool) {
	if s.Has(longer, shorter) {
		return s, false
	}
	key := outlivesKey(longer, shorter)
	bucket, _ := s.buckets.Get(key)
	bucket = append(slices.Clip(bucket), util.NewPair(longer, shorter))
	return regionPairs{buckets: s.buckets.Set(key, bucket)}, true
}

func NewOutlivesEnvironment(env ty.ParamEnv) OutlivesEnvironment {
	var pairs []regionPair
	var typeBounds []ty.TypeOutlives
	for _, p := range env.CallerBounds {
		switch p := p.(type) {
		case ty.RegionOutlivesPredicate:
			if len(p.Bound) == 0 {
				pairs = append(pairs, util.NewPair(p.Value.Longer, p.Value.Shorter))
			}
		case ty.TypeOutlivesPredicate:
			if len(p.Bound) == 0 {
				typeBounds = append(typeBounds, p.Value)
			}
		}
	}

	facts := newRegionPairs()
	for _, pair := range pairs {
		facts, _ = facts.Add(pair.Fst, pair.Snd)
	}
	// close transitively: 'a: 'b and 'b: 'c give 'a: 'c
	for changed := true; changed; {
		changed = false
		for _, ab := range pairs {
			for _, bc := range pairs {
				if !ty.Equal(ab.Snd, bc.Fst) {
					continue
				}
				var added bool
				if facts, added = facts.Add(ab.Fst, bc.Snd); !added {
					continue
				}
				pairs = append(pairs, util.NewPair(ab.Fst, bc.Snd))
				changed = true
			}
		}
	}
	return OutlivesEnvironment{facts: facts, typeBounds: typeBounds}
}

// EmptyOutlivesEnvironment knows nothing but the built-in region relations
func EmptyOutlivesEnvironment() OutlivesEnvironment {
	return NewOutlivesEnvironment(ty.EmptyParamEnv())
}

// Outlives reports whether longer is known to outlive shorter
func (env OutlivesEnvironment) Outlives(longer, shorter ty.Region) bool {
	if ty.Equal(longer, shorter) {
		return true
	}
	switch longer.(type) {
	case ty.Static, ty.Erased:
		return true
	}
	switch shorter.(type) {
	case ty.Erased:
		return true
	case ty.Scope:
		// parameters of the item are alive for the whole of its bodies
		if ty.IsFree(longer) {
			return true
		}
	}
	return env.facts.Has(longer, shorter)
}

// TypeBounds returns the regions that t is declared to outlive
func (env OutlivesEnvironment) TypeBounds(t ty.Type) []ty.Region {
	var regions []ty.Region
	for _, b := range env.typeBounds {
		if ty.Equal(b.Ty, t) {
			regions = append(regions, b.Region)
		}
	}
	return regions
}

// ResolveRegionsAndReportErrors checks every region constraint recorded in
// infcx against env, emitting one diagnostic per violated constraint. It
// returns false if any was violated.
//
// Constraints that still mention an unresolved placeholder are satisfiable
// by picking a suitable region, so they are not errors.
func (infcx *Ctxt) ResolveRegionsAndReportErrors(item ty.DefID, env OutlivesEnvironment, sess *ilerr.Session) bool {
	infcx.checkOpen()
	reported := newRegionPairs()
	ok := true
	for _, c := range infcx.regionConstraints {
		longer, shorter := infcx.shallowResolveRegion(c.Longer), infcx.shallowResolveRegion(c.Shorter)
		if isRegionVar(longer) || isRegionVar(shorter) {
			continue
		}
		if isLateBound(longer) || isLateBound(shorter) {
			infcx.logger.Debug("skipping higher-ranked region constraint", "item", item, "constraint", c.String())
			continue
		}
		if env.Outlives(longer, shorter) {
			continue
		}
		ok = false
		var added bool
		if reported, added = reported.Add(longer, shorter); !added {
			continue
		}
		sess.Emit(ilerr.New(ilerr.NewLifetimeBoundNotMet{
			Positioner: c.Origin,
			Longer:     longer,
			Shorter:    shorter,
		}))
	}
	return ok
}

func isRegionVar(r ty.Region) bool {
	_, ok := r.(ty.RegionVar)
	return ok
}

func isLateBound(r ty.Region) bool {
	_, ok := r.(ty.LateBound)
	return ok
}
