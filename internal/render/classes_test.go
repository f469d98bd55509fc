package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/yield-atlas/internal/model"
)

func TestNewClasses_EqualWidth(t *testing.T) {
	c, err := NewClasses([]float64{0, 100, 37, math.NaN()}, 5)
	require.NoError(t, err)

	assert.Equal(t, 5, c.N())
	assert.Equal(t, []float64{0, 20, 40, 60, 80, 100}, c.Breaks)
}

func TestClasses_IndexBoundaryPolicy(t *testing.T) {
	c, err := NewClasses([]float64{0, 100}, 5)
	require.NoError(t, err)

	tests := []struct {
		v    float64
		want int
	}{
		{0, 0},
		{19.999, 0},
		{20, 1},
		{50, 2},
		{79.9, 3},
		{80, 4},
		{100, 4},
		{-0.1, -1},
		{100.1, -1},
		{math.NaN(), -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Index(tt.v), "value %v", tt.v)
	}
}

func TestClasses_FractionalEdges(t *testing.T) {
	c, err := NewClasses([]float64{0, 1}, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.2, 0.4, 0.6, 0.8, 1}, c.Breaks)

	for i, edge := range []float64{0, 0.2, 0.4, 0.6, 0.8} {
		assert.Equal(t, i, c.Index(edge), "edge %v", edge)
	}
	assert.Equal(t, 2, c.Index(0.5999))
	assert.Equal(t, 4, c.Index(1))

	c, err = NewClasses([]float64{10, 11}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Index(10.3))
	assert.Equal(t, 7, c.Index(10.7))
	assert.Equal(t, 6, c.Index(10.69))
}

func TestNewClasses_TooFew(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		_, err := NewClasses([]float64{1, 2}, n)
		require.Error(t, err)
		assert.True(t, model.IsStage(err, model.StageRender))
	}
}

func TestNewClasses_AllEqual(t *testing.T) {
	c, err := NewClasses([]float64{42, 42, 42}, 5)
	require.NoError(t, err)

	assert.Equal(t, 1, c.N())
	assert.Equal(t, 0, c.Index(42))
	assert.Equal(t, -1, c.Index(41))
	assert.Equal(t, []string{"42"}, c.Labels(0))
}

func TestNewClasses_NoValues(t *testing.T) {
	c, err := NewClasses([]float64{math.NaN()}, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, c.N())
	assert.Equal(t, -1, c.Index(1))
	assert.Empty(t, c.Labels(0))
}

func TestClassesOf_SkipsNil(t *testing.T) {
	c, err := ClassesOf([]*float64{model.Float(-10), nil, model.Float(30)}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, 0, 10, 20, 30}, c.Breaks)
}

func TestClasses_Labels(t *testing.T) {
	c, err := NewClasses([]float64{150, 200}, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"150 - 175", "175 - 200"}, c.Labels(0))
	assert.Equal(t, []string{"150.0 - 175.0", "175.0 - 200.0"}, c.Labels(1))
}

func TestSharedClasses_UnionOfPanels(t *testing.T) {
	observed := []*float64{model.Float(150), model.Float(180)}
	projected := []*float64{model.Float(165), model.Float(200), nil}

	c, err := SharedClasses(5, observed, projected)
	require.NoError(t, err)

	assert.Equal(t, 150.0, c.Breaks[0])
	assert.Equal(t, 200.0, c.Breaks[5])
	assert.Equal(t, 0, c.Index(150))
	assert.Equal(t, 4, c.Index(200))
}
