// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipMagnitude clips a floating point to within [-bound, bound]. A
// bound of 0 disables clipping and returns the value unchanged.
func ClipMagnitude(value, bound float64) float64 {
	if bound <= 0 {
		return value
	}
	return Clip(value, -bound, bound)
}

// ArgMax returns the index of the maximum value in a slice of float64,
// breaking ties by the first occurrence.
func ArgMax(values []float64) int {
	maxInd := 0
	for i, value := range values {
		if value > values[maxInd] {
			maxInd = i
		}
	}
	return maxInd
}

// Min calculates and returns the minimum float64 in a list
func Min(floats ...float64) float64 {
	min := floats[0]
	for _, val := range floats {
		if val < min {
			min = val
		}
	}
	return min
}

// Max calculates and returns the maximum float64 in a list
func Max(floats ...float64) float64 {
	max := floats[0]
	for _, val := range floats {
		if val > max {
			max = val
		}
	}
	return max
}
