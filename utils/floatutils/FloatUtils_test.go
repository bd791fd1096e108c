package floatutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, Clip(5.0, -1.0, 1.0))
	assert.Equal(t, -1.0, Clip(-5.0, -1.0, 1.0))
	assert.Equal(t, 0.3, Clip(0.3, -1.0, 1.0))
}

func TestClipMagnitude(t *testing.T) {
	tests := []struct {
		value float64
		bound float64
		want  float64
	}{
		{value: 5.0, bound: 1.0, want: 1.0},
		{value: -5.0, bound: 1.0, want: -1.0},
		{value: 0.5, bound: 1.0, want: 0.5},
		{value: 1.0, bound: 1.0, want: 1.0},
		// A bound of zero disables clipping
		{value: 5.0, bound: 0.0, want: 5.0},
		{value: -123.0, bound: 0.0, want: -123.0},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, ClipMagnitude(test.value, test.bound))
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		values []float64
		want   int
	}{
		{values: []float64{1, 2, 3}, want: 2},
		{values: []float64{3, 2, 1}, want: 0},
		{values: []float64{1, 3, 2}, want: 1},
		// Ties break toward the first occurrence
		{values: []float64{2, 2, 2}, want: 0},
		{values: []float64{1, 5, 5, 1}, want: 1},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, ArgMax(test.values))
	}
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, -2.0, Min(1.0, -2.0, 3.0))
	assert.Equal(t, 3.0, Max(1.0, -2.0, 3.0))
}
