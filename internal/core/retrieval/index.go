// Package retrieval holds the per-document semantic index used to pick the
// pages most relevant to a question.
package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/markdave123-py/Contexta/internal/core"
)

// epsilon stands in for the norm of an all-zero row so it scores zero
// instead of dividing by zero.
const epsilon = 1e-10

// Index is a dense page-embedding matrix. Row i is the embedding of page i.
type Index struct {
	matrix [][]float32
	norms  []float64
}

// Build embeds every page once, in page order.
func Build(ctx context.Context, emb core.Embedder, pages []string) *Index {
	matrix := make([][]float32, len(pages))
	for i, p := range pages {
		matrix[i] = emb.Embed(ctx, p)
	}
	return NewIndex(matrix)
}

// NewIndex wraps an existing matrix.
func NewIndex(matrix [][]float32) *Index {
	norms := make([]float64, len(matrix))
	for i, row := range matrix {
		n := norm(row)
		if n == 0 {
			n = epsilon
		}
		norms[i] = n
	}
	return &Index{matrix: matrix, norms: norms}
}

// Rows is the number of indexed pages.
func (ix *Index) Rows() int { return len(ix.matrix) }

// Query embeds text and returns up to k page indices, best first.
func (ix *Index) Query(ctx context.Context, emb core.Embedder, text string, k int) []int {
	if k <= 0 || ix.Rows() == 0 {
		return nil
	}
	return ix.Rank(emb.Embed(ctx, text), k)
}

// Rank orders rows by cosine similarity to vec, descending, ties kept in page
// order. A zero query vector scores every row zero.
func (ix *Index) Rank(vec []float32, k int) []int {
	n := ix.Rows()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	scores := ix.scores(vec)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order[:k]
}

// scores is the cosine similarity of every row to vec.
func (ix *Index) scores(vec []float32) []float64 {
	out := make([]float64, len(ix.matrix))
	qn := norm(vec)
	if qn == 0 {
		return out
	}
	for i, row := range ix.matrix {
		out[i] = dot(row, vec) / (ix.norms[i] * qn)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
