package domain

import "strings"

// ModelType is the tag selecting an algorithm family. Tags are matched
// case-insensitively and stored lowercase.
type ModelType string

const (
	ModelTypeLogisticRegression ModelType = "logisticregression"
	ModelTypeRandomForest       ModelType = "randomforest"
	ModelTypeNeuralNet          ModelType = "neuralnet"
)

// NormalizeModelType lowercases and trims a caller-supplied tag. It does not
// check membership; the ml registry owns that decision.
func NormalizeModelType(tag string) ModelType {
	return ModelType(strings.ToLower(strings.TrimSpace(tag)))
}

func (t ModelType) String() string {
	return string(t)
}
