package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"model-trainer-service/internal/core/domain"
)

const DefaultTestSize = 0.2

// FitForm is the multipart form accepted by POST /fit. The CSV itself
// travels in the "file" part.
type FitForm struct {
	ModelType string `form:"model_type" binding:"required"`
	Target    string `form:"target" binding:"required"`
	FileName  string `form:"file_name"`
	TestSize  string `form:"test_size"`
	KFolds    string `form:"k_folds"`
	Params    string `form:"params"`
	Seed      string `form:"seed"`
}

type CrossValidationResponse struct {
	Folds  int       `json:"folds"`
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"std_dev"`
}

// FitResponse carries the logical model name used by the other routes in
// FileName and the artifact written to disk in SavedFileName.
type FitResponse struct {
	Message       string                   `json:"message"`
	Accuracy      float64                  `json:"accuracy"`
	FileName      string                   `json:"file_name"`
	SavedFileName string                   `json:"saved_file_name"`
	ModelType     string                   `json:"model_type"`
	CV            *CrossValidationResponse `json:"cross_validation,omitempty"`
}

// ToTrainingJob parses the scalar form fields. Features and labels are
// filled in by the caller once the CSV has been read.
func (f *FitForm) ToTrainingJob() (domain.TrainingJob, error) {
	job := domain.TrainingJob{
		Name:      strings.TrimSpace(f.FileName),
		ModelType: f.ModelType,
		TestSize:  DefaultTestSize,
		Params:    map[string]any{},
	}

	if s := strings.TrimSpace(f.TestSize); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return job, fmt.Errorf("%w: %q", domain.ErrInvalidTestSize, s)
		}
		job.TestSize = v
	}
	if s := strings.TrimSpace(f.KFolds); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return job, fmt.Errorf("%w: %q", domain.ErrInvalidFoldCount, s)
		}
		job.KFolds = v
	}
	if s := strings.TrimSpace(f.Params); s != "" {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var params map[string]any
		if err := dec.Decode(&params); err != nil {
			return job, fmt.Errorf("%w: params must be a JSON object", domain.ErrInvalidHyperparameters)
		}
		if params != nil {
			job.Params = normalizeNumbers(params)
		}
	}
	if s := strings.TrimSpace(f.Seed); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return job, fmt.Errorf("%w: seed must be an integer", domain.ErrInvalidHyperparameters)
		}
		job.Seed = &v
	}
	return job, nil
}

// normalizeNumbers turns json.Number values into int or float64 so records
// serialise the way callers sent them.
func normalizeNumbers(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch vv := v.(type) {
	case json.Number:
		if i, err := vv.Int64(); err == nil {
			return int(i)
		}
		if f, err := vv.Float64(); err == nil {
			return f
		}
		return vv.String()
	case []any:
		for i := range vv {
			vv[i] = normalizeValue(vv[i])
		}
		return vv
	case map[string]any:
		return normalizeNumbers(vv)
	}
	return v
}
