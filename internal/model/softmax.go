package model

import "math"

// Softmax converts logits to probabilities. The maximum is subtracted
// first so large logits do not overflow.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}

	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if f := float64(v); f > maxLogit {
			maxLogit = f
		}
	}

	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Widen converts model output to float64 without rescaling.
func Widen(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
