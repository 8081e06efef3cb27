package similarity_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/utils/similarity"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCosine(t *testing.T) {
	testCases := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"length mismatch", []float32{1, 2, 3}, []float32{1, 2}, 0},
		{"empty", []float32{}, []float32{}, 0},
		{"nil", nil, nil, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := similarity.Cosine(tc.a, tc.b)
			gt.True(t, near(got, tc.want))
		})
	}
}

func TestCosineSymmetric(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.7, -0.3},
		{0.9, -0.2, 0.4},
		{-0.5, 0.5, 0.5},
		{3, 1, 2},
	}

	for _, a := range vectors {
		gt.True(t, near(similarity.Cosine(a, a), 1))
		for _, b := range vectors {
			gt.True(t, near(similarity.Cosine(a, b), similarity.Cosine(b, a)))
		}
	}
}
