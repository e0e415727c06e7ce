package ml

import (
	"errors"
	"math/rand/v2"
	"sort"
)

// TreeNode is one node of a flattened CART tree. Leaves carry the class
// distribution of the training rows that reached them.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	Proba     []float64
}

// DecisionTree is a Gini-impurity CART classifier over integer class codes.
type DecisionTree struct {
	Nodes []TreeNode
}

type treeGrower struct {
	X           [][]float64
	codes       []int
	nClasses    int
	width       int
	maxDepth    int
	minSplit    int
	maxFeatures int
	rng         *rand.Rand
	nodes       []TreeNode
}

// growTree fits a tree on the rows named by idx. Duplicate indices, as
// produced by bootstrap sampling, count as repeated rows.
func growTree(g *treeGrower, idx []int) DecisionTree {
	g.nodes = g.nodes[:0]
	g.build(idx, 0)
	return DecisionTree{Nodes: g.nodes}
}

func (g *treeGrower) build(idx []int, depth int) int {
	counts := make([]int, g.nClasses)
	for _, i := range idx {
		counts[g.codes[i]]++
	}
	pos := len(g.nodes)
	g.nodes = append(g.nodes, TreeNode{})

	pure := 0
	for _, c := range counts {
		if c > 0 {
			pure++
		}
	}
	if pure <= 1 || len(idx) < g.minSplit || (g.maxDepth > 0 && depth >= g.maxDepth) {
		g.nodes[pos] = leafNode(counts, len(idx))
		return pos
	}

	feature, threshold, ok := g.bestSplit(idx)
	if !ok {
		g.nodes[pos] = leafNode(counts, len(idx))
		return pos
	}
	var left, right []int
	for _, i := range idx {
		if g.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.build(left, depth+1)
	r := g.build(right, depth+1)
	g.nodes[pos] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return pos
}

func leafNode(counts []int, total int) TreeNode {
	proba := make([]float64, len(counts))
	for c, n := range counts {
		proba[c] = float64(n) / float64(total)
	}
	return TreeNode{Leaf: true, Proba: proba}
}

// bestSplit visits features in random order until maxFeatures non-constant
// ones have been scored, and returns the split with the lowest weighted Gini.
func (g *treeGrower) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	sorted := make([]int, n)
	left := make([]int, g.nClasses)
	right := make([]int, g.nClasses)

	bestScore := -1.0
	bestFeature, bestThreshold := -1, 0.0
	visited := 0
	for _, f := range g.rng.Perm(g.width) {
		if visited >= g.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return g.X[sorted[a]][f] < g.X[sorted[b]][f] })
		if g.X[sorted[0]][f] == g.X[sorted[n-1]][f] {
			continue
		}
		visited++

		for c := range left {
			left[c], right[c] = 0, 0
		}
		for _, i := range sorted {
			right[g.codes[i]]++
		}
		var sqL, sqR float64
		for _, c := range right {
			sqR += float64(c * c)
		}
		for k := 0; k < n-1; k++ {
			code := g.codes[sorted[k]]
			sqL += float64(2*left[code] + 1)
			sqR -= float64(2*right[code] - 1)
			left[code]++
			right[code]--

			lo, hi := g.X[sorted[k]][f], g.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			// maximizing this minimizes the weighted Gini impurity
			score := sqL/nl + sqR/nr
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

var errTreeState = errors.New("decision tree: invalid node reference")

func (t *DecisionTree) proba(row []float64) ([]float64, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if i < 0 || i >= len(t.Nodes) {
			return nil, errTreeState
		}
		node := t.Nodes[i]
		if node.Leaf {
			return node.Proba, nil
		}
		if node.Feature < 0 || node.Feature >= len(row) {
			return nil, errTreeState
		}
		if row[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return nil, errTreeState
}
