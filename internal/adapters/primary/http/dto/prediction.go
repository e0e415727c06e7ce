package dto

import "model-trainer-service/internal/core/domain"

type PredictRequest struct {
	InputData   [][]float64 `json:"input_data" binding:"required"`
	ReturnProba bool        `json:"return_proba"`
}

type LabelPrediction struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

type ProbabilityPrediction struct {
	Index  int       `json:"index"`
	Scores []float64 `json:"scores"`
}

type PredictResponse struct {
	FileName      string                  `json:"file_name"`
	ModelType     string                  `json:"model_type"`
	RowsPredicted int                     `json:"rows_predicted,omitempty"`
	Predictions   []LabelPrediction       `json:"predictions,omitempty"`
	Probabilities []ProbabilityPrediction `json:"probabilities,omitempty"`
}

func ToPredictResponse(name string, t domain.ModelType, p *domain.Prediction) PredictResponse {
	resp := PredictResponse{FileName: name, ModelType: t.String()}
	if p.IsProbabilistic() {
		resp.Probabilities = make([]ProbabilityPrediction, 0, len(p.Probabilities))
		for i, scores := range p.Probabilities {
			resp.Probabilities = append(resp.Probabilities, ProbabilityPrediction{Index: i, Scores: scores})
		}
		return resp
	}
	resp.Predictions = make([]LabelPrediction, 0, len(p.Labels))
	for i, label := range p.Labels {
		resp.Predictions = append(resp.Predictions, LabelPrediction{Index: i, Value: label})
	}
	return resp
}
