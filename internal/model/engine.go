package model

import (
	"fmt"
	"math"
)

// Engine runs one forward pass over a flat input tensor.
type Engine interface {
	Run(input []float32) ([]float32, error)
	InputLen() int
	OutputLen() int
	Close() error
}

// probabilityTolerance bounds how far a sum may drift from 1 for the raw
// output to be treated as probabilities rather than logits.
const probabilityTolerance = 1e-3

// normalise turns raw model output into a probability vector. Probability
// outputs are renormalised, anything else goes through softmax.
func normalise(raw []float32) ([]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty model output")
	}

	isProb := true
	var sum float64
	for i, v := range raw {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("model output %d is not finite", i)
		}
		if f < 0 || f > 1 {
			isProb = false
		}
		sum += f
	}

	out := make([]float64, len(raw))
	if isProb && math.Abs(sum-1) <= probabilityTolerance && sum > 0 {
		for i, v := range raw {
			out[i] = float64(v) / sum
		}
		return out, nil
	}

	maxVal := float64(raw[0])
	for _, v := range raw[1:] {
		maxVal = math.Max(maxVal, float64(v))
	}
	sum = 0
	for i, v := range raw {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// argmax returns the index of the largest value; ties go to the lowest index.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
