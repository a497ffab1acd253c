package analysis

import "scathago/internal/ir"

// PostDomTree is the post-dominator tree of a function: b post-dominates
// a if every path from a to the function's exit passes through b. It is
// computed the same way as DomTree but walking predecessor edges from a
// synthetic virtual exit joining every return block. DCE walks its
// Frontier to find the branches a live block is control-dependent on.
type PostDomTree struct {
	order    []*ir.BasicBlock
	index    map[*ir.BasicBlock]int
	ipdom    []int
	frontier map[*ir.BasicBlock][]*ir.BasicBlock
}

func BuildPostDomTree(fn *ir.Function) *PostDomTree {
	order, index, succOf, predOf := reverseCFG(fn)
	n := len(order)
	ipdom := make([]int, n)
	for i := range ipdom {
		ipdom[i] = -1
	}
	virtualExit := n - 1
	ipdom[virtualExit] = virtualExit

	changed := true
	for changed {
		changed = false
		for i := n - 2; i >= 0; i-- {
			newIdom := -1
			for _, s := range succOf[i] {
				if ipdom[s] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = s
					continue
				}
				newIdom = intersect(ipdom, newIdom, s)
			}
			if newIdom != -1 && ipdom[i] != newIdom {
				ipdom[i] = newIdom
				changed = true
			}
		}
	}

	pt := &PostDomTree{order: order, index: index, ipdom: ipdom}
	pt.computeFrontiers(predOf)
	return pt
}

// reverseCFG returns a postorder-ish numbering of fn's blocks plus a
// synthetic exit node appended last, with succOf/predOf expressed over
// the reversed edge direction (a block's "successors" here are its real
// predecessors, since post-dominance walks the CFG backwards).
func reverseCFG(fn *ir.Function) (order []*ir.BasicBlock, index map[*ir.BasicBlock]int, succOf, predOf [][]int) {
	order = append(order, fn.Blocks...)
	index = make(map[*ir.BasicBlock]int, len(order)+1)
	for i, bb := range order {
		index[bb] = i
	}
	n := len(order)
	virtualExit := n

	succOf = make([][]int, n+1)
	predOf = make([][]int, n+1)
	for i, bb := range order {
		for _, pred := range bb.Predecessors() {
			pi := index[pred]
			succOf[i] = append(succOf[i], pi)
			predOf[pi] = append(predOf[pi], i)
		}
		if len(bb.Successors()) == 0 {
			succOf[i] = append(succOf[i], virtualExit)
			predOf[virtualExit] = append(predOf[virtualExit], i)
		}
	}
	order = append(order, nil) // virtualExit has no backing block
	return order, index, succOf, predOf
}

func (pt *PostDomTree) PostDominates(a, b *ir.BasicBlock) bool {
	ai, aok := pt.index[a]
	bi, bok := pt.index[b]
	if !aok || !bok {
		return false
	}
	for bi != ai {
		if pt.ipdom[bi] == bi {
			return false
		}
		bi = pt.ipdom[bi]
	}
	return true
}

func (pt *PostDomTree) Frontier(bb *ir.BasicBlock) []*ir.BasicBlock {
	return pt.frontier[bb]
}

// IPDom returns bb's immediate post-dominator: the nearest block every
// path from bb to the function's exit must pass through. Returns nil
// for a block that reaches the virtual exit directly (a return block,
// or one with no path to any live return at all).
func (pt *PostDomTree) IPDom(bb *ir.BasicBlock) *ir.BasicBlock {
	i, ok := pt.index[bb]
	if !ok || pt.ipdom[i] == i || pt.ipdom[i] < 0 {
		return nil
	}
	ipd := pt.order[pt.ipdom[i]]
	return ipd // nil when ipdom[i] is the virtual exit, since order's last slot is nil
}

func (pt *PostDomTree) computeFrontiers(predOf [][]int) {
	pt.frontier = make(map[*ir.BasicBlock][]*ir.BasicBlock)
	n := len(pt.order) - 1 // exclude the virtual exit
	for i := 0; i < n; i++ {
		preds := predOf[i]
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			runner := p
			for runner != -1 && runner != pt.ipdom[i] && runner < n {
				pt.frontier[pt.order[runner]] = appendUnique(pt.frontier[pt.order[runner]], pt.order[i])
				runner = pt.ipdom[runner]
			}
		}
	}
}
