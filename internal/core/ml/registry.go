package ml

import (
	"fmt"

	"model-trainer-service/internal/core/domain"
)

// Registry is the fixed mapping from model-type tag to variant constructor.
type Registry struct {
	constructors map[domain.ModelType]Constructor
	order        []domain.ModelType
}

func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[domain.ModelType]Constructor)}
	r.register(domain.ModelTypeLogisticRegression, func(params map[string]any) (Model, error) {
		m, err := NewLinearClassifier(params)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	r.register(domain.ModelTypeRandomForest, func(params map[string]any) (Model, error) {
		m, err := NewEnsembleClassifier(params)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	r.register(domain.ModelTypeNeuralNet, func(params map[string]any) (Model, error) {
		m, err := NewBinaryNeuralNet(params)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	return r
}

func (r *Registry) register(t domain.ModelType, c Constructor) {
	r.constructors[t] = c
	r.order = append(r.order, t)
}

// Resolve normalizes tag and returns its canonical type and constructor.
func (r *Registry) Resolve(tag string) (domain.ModelType, Constructor, error) {
	t := domain.NormalizeModelType(tag)
	c, ok := r.constructors[t]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedModelType, tag)
	}
	return t, c, nil
}

// New resolves tag and constructs an unfitted variant with params.
func (r *Registry) New(tag string, params map[string]any) (Model, error) {
	_, c, err := r.Resolve(tag)
	if err != nil {
		return nil, err
	}
	return c(params)
}

// SupportedTypes lists the registered tags in registration order.
func (r *Registry) SupportedTypes() []domain.ModelType {
	out := make([]domain.ModelType, len(r.order))
	copy(out, r.order)
	return out
}
