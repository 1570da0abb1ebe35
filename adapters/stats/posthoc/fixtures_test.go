package posthoc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goposthoc/domain/posthoc"
)

// exercise holds pulse rates after rest, walking and running
func exercise() posthoc.Groups {
	return posthoc.Groups{
		Labels: []string{"rest", "walking", "running"},
		Samples: [][]float64{
			{85, 85, 88, 90, 92, 93, 97, 97, 94, 80, 82, 83, 91, 92, 91, 83, 83, 84, 87, 88, 90, 92, 94, 95, 97, 99, 96, 100, 97, 100},
			{86, 86, 84, 93, 103, 104, 90, 92, 93, 95, 96, 100, 89, 96, 95, 84, 86, 89, 103, 109, 90, 92, 96, 101, 97, 98, 100, 102, 104, 103},
			{93, 98, 110, 98, 104, 112, 98, 105, 99, 87, 132, 120, 94, 110, 116, 95, 126, 143, 100, 126, 140, 103, 124, 140, 94, 135, 130, 99, 111, 150},
		},
	}
}

// blockData is a 3-block, 7-treatment complete design
func blockData() posthoc.BlockDesign {
	return posthoc.BlockDesign{
		Treatments: []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7"},
		Values: [][]float64{
			{4, 3, 4, 4, 5, 6, 3},
			{1, 2, 3, 5, 6, 7, 7},
			{1, 2, 6, 4, 1, 5, 1},
		},
	}
}

func opts(mutate func(o *posthoc.Options)) posthoc.Options {
	o := posthoc.DefaultOptions()
	if mutate != nil {
		mutate(&o)
	}
	return o
}

// upper returns the upper triangle in row-major order
func upper(m posthoc.Matrix) []float64 {
	var out []float64
	for i := range m.Values {
		for j := i + 1; j < len(m.Values); j++ {
			out = append(out, m.Values[i][j])
		}
	}
	return out
}

// assertRelative checks every value within a relative tolerance
func assertRelative(t *testing.T, want, got []float64, eps float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], eps, "index %d: want %g got %g", i, want[i], got[i])
	}
}

// assertWellFormed checks the structural invariants of every output matrix
func assertWellFormed(t *testing.T, m posthoc.Matrix) {
	t.Helper()
	k := len(m.Values)
	require.Len(t, m.Labels, k)
	for i := 0; i < k; i++ {
		require.Len(t, m.Values[i], k)
		assert.Equal(t, -1.0, m.Values[i][i])
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			v := m.Values[i][j]
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "cell (%d,%d) not finite", i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			assert.Equal(t, v, m.Values[j][i], "asymmetric at (%d,%d)", i, j)
		}
	}
}
