package domain

// Prediction holds either one label per row or one probability vector per row.
type Prediction struct {
	Labels        []string
	Probabilities [][]float64
}

func (p *Prediction) IsProbabilistic() bool {
	return p.Probabilities != nil
}

func (p *Prediction) Len() int {
	if p.Probabilities != nil {
		return len(p.Probabilities)
	}
	return len(p.Labels)
}
