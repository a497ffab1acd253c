package analysis

import "scathago/internal/ir"

// Loop is one natural loop: a dominator-rooted back-edge target (Header)
// plus every block on some path from Header back to the block closing
// the edge. Blocks also contains the blocks of any loop nested inside it.
type Loop struct {
	Header *ir.BasicBlock
	Blocks map[*ir.BasicBlock]bool
	Parent *Loop
	Nested []*Loop
}

// Depth returns the loop's nesting depth, 1 for an outermost loop.
func (l *Loop) Depth() int {
	d := 1
	for p := l.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// LoopForest is every natural loop in a function, organized by nesting.
type LoopForest struct {
	ByHeader map[*ir.BasicBlock]*Loop
	Top      []*Loop
}

// BuildLoopForest finds every natural loop via back edges identified
// from dt (an edge b->h is a back edge iff h dominates b), then merges
// loops sharing a header and nests a loop inside another when its header
// is strictly dominated by the outer loop's header and contained in its
// block set.
func BuildLoopForest(fn *ir.Function, dt *DomTree) *LoopForest {
	forest := &LoopForest{ByHeader: make(map[*ir.BasicBlock]*Loop)}

	for _, bb := range fn.Blocks {
		for _, succ := range bb.Successors() {
			if dt.Dominates(succ, bb) {
				forest.addBackEdge(succ, bb)
			}
		}
	}

	nestLoops(forest, dt)
	return forest
}

func (f *LoopForest) addBackEdge(header, latch *ir.BasicBlock) {
	loop, ok := f.ByHeader[header]
	if !ok {
		loop = &Loop{Header: header, Blocks: map[*ir.BasicBlock]bool{header: true}}
		f.ByHeader[header] = loop
	}
	natural := naturalLoopBody(header, latch)
	for bb := range natural {
		loop.Blocks[bb] = true
	}
}

// naturalLoopBody walks predecessor edges backward from latch until it
// reaches header, collecting every block found along the way — the
// standard worklist construction of a natural loop's body.
func naturalLoopBody(header, latch *ir.BasicBlock) map[*ir.BasicBlock]bool {
	body := map[*ir.BasicBlock]bool{header: true, latch: true}
	worklist := []*ir.BasicBlock{latch}
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, pred := range bb.Predecessors() {
			if !body[pred] {
				body[pred] = true
				worklist = append(worklist, pred)
			}
		}
	}
	return body
}

func nestLoops(f *LoopForest, dt *DomTree) {
	var loops []*Loop
	for _, l := range f.ByHeader {
		loops = append(loops, l)
	}
	for _, inner := range loops {
		var best *Loop
		for _, outer := range loops {
			if outer == inner {
				continue
			}
			if outer.Blocks[inner.Header] && dt.Dominates(outer.Header, inner.Header) && outer.Header != inner.Header {
				if best == nil || len(outer.Blocks) < len(best.Blocks) {
					best = outer
				}
			}
		}
		inner.Parent = best
		if best != nil {
			best.Nested = append(best.Nested, inner)
		} else {
			f.Top = append(f.Top, inner)
		}
	}
}
