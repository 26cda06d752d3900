package model

import (
	"cmp"
	"slices"
)

// Metadata is the JSON side-car exported next to the model artifact.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// TensorRequest carries an already preprocessed input tensor.
type TensorRequest struct {
	Image []float32 `json:"image"`
}

// PredictionResult is the outcome of one forward pass. Probabilities holds
// every label of the classifier and sums to 1.
type PredictionResult struct {
	PredictedLabel string             `json:"predicted_label"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// LabelProbability is one row of a ranked result.
type LabelProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Ranked returns all probabilities sorted by descending value, ties by label.
func (r *PredictionResult) Ranked() []LabelProbability {
	out := make([]LabelProbability, 0, len(r.Probabilities))
	for label, p := range r.Probabilities {
		out = append(out, LabelProbability{Label: label, Probability: p})
	}
	slices.SortFunc(out, func(a, b LabelProbability) int {
		if c := cmp.Compare(b.Probability, a.Probability); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// Top returns at most n rows of Ranked.
func (r *PredictionResult) Top(n int) []LabelProbability {
	ranked := r.Ranked()
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}
