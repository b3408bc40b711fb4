// Package unionfind implements a disjoint-set forest over the integers [0, n).
package unionfind

// UnionFind tracks a partition of [0, n) into connected classes
type UnionFind struct {
	parents []int
}

// New creates a UnionFind where every element starts in its own class
func New(n int) *UnionFind {
	parents := make([]int, n)
	for i := range parents {
		parents[i] = i
	}
	return &UnionFind{parents: parents}
}

// Find returns the representative of i's class, compressing the path to it
func (u *UnionFind) Find(i int) int {
	root := i
	for u.parents[root] != root {
		root = u.parents[root]
	}
	for u.parents[i] != root {
		next := u.parents[i]
		u.parents[i] = root
		i = next
	}
	return root
}

// Merge joins the classes of a and b. The representative of a's class
// becomes the representative of the merged class.
func (u *UnionFind) Merge(a, b int) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return
	}
	u.parents[rb] = ra
}

// Connected reports whether a and b are in the same class
func (u *UnionFind) Connected(a, b int) bool {
	return u.Find(a) == u.Find(b)
}
