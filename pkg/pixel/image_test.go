package pixel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polstokes/pkg/polerr"
)

func ramp(rows, cols int) Image {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i)
	}
	im, _ := New(rows, cols, data)
	return im
}

func TestNewRejectsWrongLength(t *testing.T) {
	_, err := New(2, 2, []float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, polerr.ErrShapeMismatch))
}

func TestArithmeticDoesNotMutate(t *testing.T) {
	a := ramp(2, 3)
	b := Filled(2, 3, 2)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7}, sum.Data)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, a.Data, "receiver must be unchanged")

	diff, err := sum.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, a.Data, diff.Data)

	prod, err := a.Mul(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10}, prod.Data)

	quot, err := prod.Div(b)
	require.NoError(t, err)
	assert.Equal(t, a.Data, quot.Data)
}

func TestArithmeticShapeMismatch(t *testing.T) {
	a := ramp(2, 3)
	b := ramp(3, 2)
	for name, op := range map[string]func(Image) (Image, error){
		"add": a.Add, "sub": a.Sub, "mul": a.Mul, "div": a.Div,
	} {
		_, err := op(b)
		assert.ErrorIs(t, err, polerr.ErrShapeMismatch, name)
	}
}

func TestScalarOps(t *testing.T) {
	a := ramp(1, 4)
	assert.Equal(t, []float64{1, 2, 3, 4}, a.AddScalar(1).Data)
	assert.Equal(t, []float64{-1, 0, 1, 2}, a.SubScalar(1).Data)
	assert.Equal(t, []float64{0, 3, 6, 9}, a.MulScalar(3).Data)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5}, a.DivScalar(2).Data)
	assert.Equal(t, []float64{0, 1, 2, 3}, a.Data)
}

func TestBinSumsBlocksAndScalesDelta(t *testing.T) {
	a := ramp(4, 5).WithScale(0.5, 2)
	b, err := a.Bin(2)
	require.NoError(t, err)

	assert.Equal(t, 2, b.Rows)
	assert.Equal(t, 2, b.Cols)
	// block (0,0): 0+1+5+6, block (0,1): 2+3+7+8
	assert.Equal(t, []float64{12, 20, 52, 60}, b.Data)
	assert.Equal(t, 1.0, b.XDelta)
	assert.Equal(t, 4.0, b.YDelta)
}

func TestBinComposes(t *testing.T) {
	a := ramp(12, 12)
	b2, err := a.Bin(2)
	require.NoError(t, err)
	b23, err := b2.Bin(3)
	require.NoError(t, err)
	b6, err := a.Bin(6)
	require.NoError(t, err)
	assert.InDeltaSlice(t, b6.Data, b23.Data, 1e-9)
	assert.Equal(t, b6.XDelta, b23.XDelta)
}

func TestBinInvalid(t *testing.T) {
	a := ramp(4, 4)
	_, err := a.Bin(0)
	assert.ErrorIs(t, err, polerr.ErrInvalidParameter)
	_, err = a.Bin(5)
	assert.ErrorIs(t, err, polerr.ErrInvalidParameter)
}

func TestApplyMaskAndSelect(t *testing.T) {
	a := ramp(2, 2)
	mask := []bool{true, false, false, true}
	masked, err := a.ApplyMask(mask)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 3}, masked.Data)

	sel, err := a.Select(mask)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3}, sel)

	_, err = a.Select([]bool{true})
	assert.ErrorIs(t, err, polerr.ErrShapeMismatch)
}

func TestCrop(t *testing.T) {
	a := ramp(3, 3)
	c, err := a.Crop(1, 3, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Rows)
	assert.Equal(t, 2, c.Cols)
	assert.Equal(t, []float64{1, 2, 4, 5}, c.Data)
}

func TestMakeGrid(t *testing.T) {
	a := Filled(2, 3, 0).WithScale(2, 10)
	ys, xs := a.MakeArrays(1, 0)
	assert.Equal(t, []float64{0, 10}, ys)
	assert.Equal(t, []float64{-2, 0, 2}, xs)

	xx, yy := a.MakeGrid(1, 0)
	assert.Equal(t, []float64{-2, 0, 2, -2, 0, 2}, xx)
	assert.Equal(t, []float64{0, 0, 0, 10, 10, 10}, yy)
}
