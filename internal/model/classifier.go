package model

import (
	"context"
)

// Prediction is the answer of a classifier for one feature vector.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Classifier defines the contract of the downstream flow classifier.
type Classifier interface {
	// Predict receives the feature values in schema order and returns the predicted label.
	Predict(ctx context.Context, features []float64) (Prediction, error)
}
