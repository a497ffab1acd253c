// Package analysis computes the dataflow facts the optimization passes
// consume: dominance and post-dominance trees, the natural loop nest
// forest, scalar evolution, and pointer provenance.
package analysis

import (
	"scathago/internal/ir"
)

// DomTree is a function's dominator tree, computed with the iterative
// Cooper-Harvey-Kennedy algorithm: simpler to get right than
// Lengauer-Tarjan and fast enough in practice for the block counts this
// compiler ever sees.
type DomTree struct {
	order   []*ir.BasicBlock
	index   map[*ir.BasicBlock]int
	idom    []int // idom[i] = index of i's immediate dominator, or i itself for the entry
	frontier map[*ir.BasicBlock][]*ir.BasicBlock
}

// BuildDomTree computes the dominator tree of fn, which must have an
// entry block and every block reachable from it.
func BuildDomTree(fn *ir.Function) *DomTree {
	order, index := reversePostorder(fn)
	n := len(order)
	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	entry := 0
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for i := 1; i < n; i++ {
			bb := order[i]
			newIdom := -1
			for _, pred := range bb.Predecessors() {
				pi, ok := index[pred]
				if !ok || idom[pi] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = pi
					continue
				}
				newIdom = intersect(idom, newIdom, pi)
			}
			if newIdom != -1 && idom[i] != newIdom {
				idom[i] = newIdom
				changed = true
			}
		}
	}

	dt := &DomTree{order: order, index: index, idom: idom}
	dt.computeFrontiers(fn)
	return dt
}

func intersect(idom []int, a, b int) int {
	for a != b {
		for a > b {
			a = idom[a]
		}
		for b > a {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder numbers fn's reachable blocks so every predecessor (in
// the acyclic sense, ignoring back edges) is numbered before its
// successors — required by the iterative dominance algorithm to converge
// quickly.
func reversePostorder(fn *ir.Function) ([]*ir.BasicBlock, map[*ir.BasicBlock]int) {
	entry := fn.Entry()
	visited := make(map[*ir.BasicBlock]bool)
	var postorder []*ir.BasicBlock

	var visit func(bb *ir.BasicBlock)
	visit = func(bb *ir.BasicBlock) {
		if bb == nil || visited[bb] {
			return
		}
		visited[bb] = true
		for _, succ := range bb.Successors() {
			visit(succ)
		}
		postorder = append(postorder, bb)
	}
	visit(entry)

	n := len(postorder)
	order := make([]*ir.BasicBlock, n)
	index := make(map[*ir.BasicBlock]int, n)
	for i, bb := range postorder {
		order[n-1-i] = bb
	}
	for i, bb := range order {
		index[bb] = i
	}
	return order, index
}

// Dominates reports whether a dominates b (every path from the entry to
// b passes through a). Every block dominates itself.
func (dt *DomTree) Dominates(a, b *ir.BasicBlock) bool {
	ai, aok := dt.index[a]
	bi, bok := dt.index[b]
	if !aok || !bok {
		return false
	}
	for bi != ai {
		if dt.idom[bi] == bi {
			return false
		}
		bi = dt.idom[bi]
	}
	return true
}

// IDom returns bb's immediate dominator, or nil for the entry block.
func (dt *DomTree) IDom(bb *ir.BasicBlock) *ir.BasicBlock {
	i, ok := dt.index[bb]
	if !ok || dt.idom[i] == i {
		return nil
	}
	return dt.order[dt.idom[i]]
}

// Frontier returns bb's dominance frontier: the set of blocks bb
// dominates a predecessor of but does not strictly dominate itself — the
// set Mem2Reg inserts phi nodes into.
func (dt *DomTree) Frontier(bb *ir.BasicBlock) []*ir.BasicBlock {
	return dt.frontier[bb]
}

// Blocks returns every block the tree covers, in reverse-postorder.
func (dt *DomTree) Blocks() []*ir.BasicBlock { return dt.order }

func (dt *DomTree) computeFrontiers(fn *ir.Function) {
	dt.frontier = make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, bb := range dt.order {
		preds := bb.Predecessors()
		if len(preds) < 2 {
			continue
		}
		for _, pred := range preds {
			runner := pred
			for runner != nil && runner != dt.IDom(bb) {
				dt.frontier[runner] = appendUnique(dt.frontier[runner], bb)
				runner = dt.IDom(runner)
			}
		}
	}
}

func appendUnique(list []*ir.BasicBlock, bb *ir.BasicBlock) []*ir.BasicBlock {
	for _, existing := range list {
		if existing == bb {
			return list
		}
	}
	return append(list, bb)
}
