// Package liveness computes per-instruction live-variable sets by
// backward dataflow over the control-flow graph, and derives from them
// the concurrent-liveness index the register allocator colours against.
package liveness

import (
	"sort"

	"github.com/vidcore/v3dlib/pkg/cfg"
	"github.com/vidcore/v3dlib/pkg/target"
)

// VarSet is a set of source variable ids.
type VarSet map[int]struct{}

// NewVarSet creates an empty set.
func NewVarSet() VarSet { return make(VarSet) }

// Add inserts a variable.
func (s VarSet) Add(v int) { s[v] = struct{}{} }

// Contains reports membership.
func (s VarSet) Contains(v int) bool {
	_, ok := s[v]
	return ok
}

// AddAll inserts every member of o and reports whether s grew.
func (s VarSet) AddAll(o VarSet) bool {
	grew := false
	for v := range o {
		if !s.Contains(v) {
			s.Add(v)
			grew = true
		}
	}
	return grew
}

// Copy returns an independent copy.
func (s VarSet) Copy() VarSet {
	c := NewVarSet()
	for v := range s {
		c.Add(v)
	}
	return c
}

// Slice returns the members in ascending order.
func (s VarSet) Slice() []int {
	out := make([]int, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ComputeDefUse returns the per-instruction def and use variable sets.
func ComputeDefUse(instrs []target.Instr) (def, use []VarSet) {
	def = make([]VarSet, len(instrs))
	use = make([]VarSet, len(instrs))
	for i, instr := range instrs {
		def[i] = NewVarSet()
		use[i] = NewVarSet()
		for _, v := range target.Defs(instr) {
			def[i].Add(v)
		}
		for _, v := range target.Uses(instr) {
			use[i].Add(v)
		}
	}
	return def, use
}

// Info holds a liveness fixpoint.
type Info struct {
	Def     []VarSet
	Use     []VarSet
	LiveIn  []VarSet
	LiveOut []VarSet
}

// Analyze runs the backward dataflow to a fixpoint:
//
//	live_in(i)  = use(i) ∪ (live_out(i) \ def(i))
//	live_out(i) = ∪ live_in(s) for s ∈ succ(i)
//
// Iteration runs in reverse instruction order until nothing changes.
func Analyze(instrs []target.Instr, g cfg.CFG) *Info {
	def, use := ComputeDefUse(instrs)
	info := &Info{
		Def:     def,
		Use:     use,
		LiveIn:  make([]VarSet, len(instrs)),
		LiveOut: make([]VarSet, len(instrs)),
	}
	for i := range instrs {
		info.LiveIn[i] = NewVarSet()
		info.LiveOut[i] = NewVarSet()
	}

	for changed := true; changed; {
		changed = false
		for i := len(instrs) - 1; i >= 0; i-- {
			out := info.LiveOut[i]
			for s := range g[i] {
				if out.AddAll(info.LiveIn[s]) {
					changed = true
				}
			}
			in := info.LiveIn[i]
			if in.AddAll(use[i]) {
				changed = true
			}
			for v := range out {
				if !def[i].Contains(v) && !in.Contains(v) {
					in.Add(v)
					changed = true
				}
			}
		}
	}
	return info
}

// LiveSets indexes, for every variable, the set of variables ever live
// at the same time. Variables in one live-in set are concurrently
// live, as is a defined variable with everything live out of its
// definition.
type LiveSets struct {
	sets []VarSet
}

// NewLiveSets builds the concurrent-liveness index for numVars
// variables.
func NewLiveSets(numVars int, instrs []target.Instr, info *Info) *LiveSets {
	ls := &LiveSets{sets: make([]VarSet, numVars)}
	for i := range ls.sets {
		ls.sets[i] = NewVarSet()
	}
	record := func(v int, with VarSet) {
		if v < numVars {
			ls.sets[v].AddAll(with)
		}
	}
	for i := range instrs {
		in := info.LiveIn[i]
		for v := range in {
			record(v, in)
		}
		out := info.LiveOut[i]
		for v := range info.Def[i] {
			record(v, out)
			for w := range out {
				record(w, info.Def[i])
			}
		}
	}
	return ls
}

// With returns the variables ever live together with v.
func (ls *LiveSets) With(v int) VarSet { return ls.sets[v] }
