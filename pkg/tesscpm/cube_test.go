package tesscpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeFromFrames(t *testing.T) {
	c, err := CubeFromFrames([][]float64{{1, 2, 3, 4, 5, 6}, {7, 8, 9, 10, 11, 12}}, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, c.T)
	assert.Equal(t, 6, c.FrameSize())
	assert.Equal(t, 6.0, c.At(0, 1, 2))
	assert.Equal(t, 8.0, c.At(1, 0, 1))
	assert.Equal(t, []float64{7, 8, 9, 10, 11, 12}, c.Frame(1))

	_, err = CubeFromFrames([][]float64{{1, 2, 3, 4}, {1, 2, 3}}, 2, 2)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCubeSelect(t *testing.T) {
	c, err := CubeFromFrames([][]float64{{1, 1}, {2, 2}, {3, 3}}, 1, 2)
	require.NoError(t, err)

	out := c.Select([]bool{true, false, true})
	assert.Equal(t, 2, out.T)
	assert.Equal(t, []float64{1, 1, 3, 3}, out.Data)

	// Select copies.
	out.Data[0] = 99
	assert.Equal(t, 1.0, c.At(0, 0, 0))
}
