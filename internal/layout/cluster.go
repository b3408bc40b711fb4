// Package layout recovers receipt structure from loose OCR words: which
// words belong to the same slip, which share a text line, and the order the
// lines are read in.
package layout

import (
	"sort"

	"github.com/zombor/receipt-ocr/internal/ocr"
	"github.com/zombor/receipt-ocr/internal/unionfind"
)

// LineOverlapThreshold is the vertical coverage two words must exceed to be
// placed on the same line
const LineOverlapThreshold = 0.5

// Cluster is one connected class of words. Root is the representative the
// class was found under; Members are indices into the word slice, ascending.
type Cluster struct {
	Root    int   `json:"root"`
	Members []int `json:"members"`
}

// Group is the result of clustering a set of words: the flat member list it
// started from and the classes found within it, ordered by Root.
type Group struct {
	Members  []int     `json:"members"`
	Clusters []Cluster `json:"clusters"`
}

// SplitReceipts partitions all words into receipts: two words belong to the
// same receipt when their padded boxes intersect, transitively.
func SplitReceipts(words []ocr.WordBox) Group {
	members := make([]int, len(words))
	for i := range members {
		members[i] = i
	}
	return cluster(members, func(a, b int) bool {
		return words[a].Box.Intersects(words[b].Box)
	})
}

// GroupLines partitions the given member words into text lines: two words
// share a line when their vertical extents overlap by more than
// LineOverlapThreshold of their combined extent, transitively.
func GroupLines(words []ocr.WordBox, members []int) Group {
	return cluster(members, func(a, b int) bool {
		return LineCoverage(words[a], words[b]) > LineOverlapThreshold
	})
}

// LineCoverage returns the overlap of a's and b's vertical extents divided by
// the extent of their union, or 0 when they do not overlap
func LineCoverage(a, b ocr.WordBox) float64 {
	minA, maxA := a.VerticalExtent()
	minB, maxB := b.VerticalExtent()

	interMin, interMax := max(minA, minB), min(maxA, maxB)
	if interMax <= interMin {
		return 0
	}
	unionMin, unionMax := min(minA, minB), max(maxA, maxB)
	return (interMax - interMin) / (unionMax - unionMin)
}

// cluster merges every pair of members for which related holds and returns
// the resulting classes. Roots are positions within members.
func cluster(members []int, related func(a, b int) bool) Group {
	uf := unionfind.New(len(members))
	for i := range members {
		for k := i + 1; k < len(members); k++ {
			if !uf.Connected(i, k) && related(members[i], members[k]) {
				uf.Merge(i, k)
			}
		}
	}

	byRoot := make(map[int]*Cluster)
	for i, m := range members {
		root := uf.Find(i)
		c, ok := byRoot[root]
		if !ok {
			c = &Cluster{Root: root}
			byRoot[root] = c
		}
		c.Members = append(c.Members, m)
	}

	g := Group{Members: members, Clusters: make([]Cluster, 0, len(byRoot))}
	for _, c := range byRoot {
		sort.Ints(c.Members)
		g.Clusters = append(g.Clusters, *c)
	}
	sort.Slice(g.Clusters, func(i, j int) bool { return g.Clusters[i].Root < g.Clusters[j].Root })
	return g
}
