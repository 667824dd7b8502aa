package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultK is the number of classes reported per image.
const DefaultK = 3

// ErrInvalidInput is returned when labels and probabilities do not form a
// rankable input.
var ErrInvalidInput = errors.New("invalid input")

// Prediction pairs a class label with the model's score for it.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// String renders the prediction as "<label>: <percentage>%".
func (p Prediction) String() string {
	return p.Label + ": " + Percent(p.Probability) + "%"
}

// TopK pairs labels with probabilities positionally and returns the k
// highest-scoring entries in descending order. Equal probabilities keep
// their original label order.
func TopK(labels []string, probs []float64, k int) ([]Prediction, error) {
	if len(labels) != len(probs) {
		return nil, fmt.Errorf("%w: %d labels, %d probabilities", ErrInvalidInput, len(labels), len(probs))
	}
	if k < 1 || k > len(labels) {
		return nil, fmt.Errorf("%w: k=%d with %d labels", ErrInvalidInput, k, len(labels))
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: probability for %q is not finite", ErrInvalidInput, labels[i])
		}
	}

	ranked := make([]Prediction, len(labels))
	for i := range labels {
		ranked[i] = Prediction{Label: labels[i], Probability: probs[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})

	return ranked[:k:k], nil
}

// Summarize formats ranked predictions as a single line, e.g.
// "Topp 3 klassifiseringer: steinsopp: 90.0%, kantarell: 5.0%, hvit_fluesopp: 5.0%".
func Summarize(preds []Prediction) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return fmt.Sprintf("Topp %d klassifiseringer: %s", len(preds), strings.Join(parts, ", "))
}

// RankTopK ranks and formats in one step.
func RankTopK(labels []string, probs []float64, k int) (string, error) {
	preds, err := TopK(labels, probs, k)
	if err != nil {
		return "", err
	}
	return Summarize(preds), nil
}

// Percent converts a probability to a percentage rounded to two decimal
// places, half away from zero. The value is scaled in decimal arithmetic
// starting from the shortest representation of p, so 0.8765 yields
// "87.65" rather than a binary artefact. At least one fractional digit is
// always printed ("90.0", "5.0").
func Percent(p float64) string {
	s := decimal.NewFromFloat(p).Shift(2).Round(2).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
