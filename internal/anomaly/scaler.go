package anomaly

import (
	"math"

	"github.com/rotisserie/eris"
)

// StandardScaler centers features to zero mean and scales to unit variance.
// It is fitted per run on the complete session set.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-feature mean and standard deviation. A feature with
// zero variance is scaled by 1 so it contributes a constant zero after
// centering. If every feature has zero variance the matrix carries no signal
// and fitting fails.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, eris.New("anomaly: no rows to fit scaler")
	}
	dims := len(X[0])
	mean := make([]float64, dims)
	std := make([]float64, dims)

	for _, row := range X {
		for d, v := range row {
			mean[d] += v
		}
	}
	n := float64(len(X))
	for d := range mean {
		mean[d] /= n
	}

	for _, row := range X {
		for d, v := range row {
			diff := v - mean[d]
			std[d] += diff * diff
		}
	}

	degenerate := true
	for d := range std {
		std[d] = math.Sqrt(std[d] / n)
		if std[d] > 0 {
			degenerate = false
		} else {
			std[d] = 1
		}
	}
	if degenerate {
		return nil, eris.New("anomaly: all features have zero variance")
	}

	return &StandardScaler{Mean: mean, Std: std}, nil
}

// Transform scales a feature matrix in a new allocation.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow scales one feature vector.
func (s *StandardScaler) TransformRow(row []float64) []float64 {
	scaled := make([]float64, len(row))
	for d, v := range row {
		scaled[d] = (v - s.Mean[d]) / s.Std[d]
	}
	return scaled
}
