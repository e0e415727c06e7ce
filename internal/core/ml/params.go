package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"model-trainer-service/internal/core/domain"
)

// paramReader pulls typed values out of an opaque hyperparameter map and
// collects every problem so the caller sees them all at once.
type paramReader struct {
	raw  map[string]any
	seen map[string]bool
	errs []string
}

func newParamReader(raw map[string]any) *paramReader {
	return &paramReader{raw: raw, seen: make(map[string]bool)}
}

func (p *paramReader) lookup(key string) (any, bool) {
	p.seen[key] = true
	v, ok := p.raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (p *paramReader) fail(key string, v any, want string) {
	p.errs = append(p.errs, fmt.Sprintf("%s: expected %s, got %v", key, want, v))
}

func (p *paramReader) Float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		p.fail(key, v, "number")
		return def
	}
	return f
}

func (p *paramReader) Int(key string, def int) int {
	v, ok := p.OptionalInt(key)
	if !ok {
		return def
	}
	return v
}

func (p *paramReader) OptionalInt(key string) (int, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}
	i, ok := toInt(v)
	if !ok {
		p.fail(key, v, "integer")
		return 0, false
	}
	return i, true
}

func (p *paramReader) Bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		p.fail(key, v, "boolean")
		return def
	}
	return b
}

func (p *paramReader) String(key, def string) string {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		p.fail(key, v, "string")
		return def
	}
	return s
}

func (p *paramReader) Ints(key string, def []int) []int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	var items []any
	switch vv := v.(type) {
	case []any:
		items = vv
	case []int:
		return append([]int(nil), vv...)
	default:
		// a bare number means a single layer
		if i, ok := toInt(v); ok {
			return []int{i}
		}
		p.fail(key, v, "list of integers")
		return def
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		i, ok := toInt(item)
		if !ok {
			p.fail(key, v, "list of integers")
			return def
		}
		out = append(out, i)
	}
	return out
}

// Raw returns the value without type coercion.
func (p *paramReader) Raw(key string) (any, bool) {
	return p.lookup(key)
}

// Check adds a problem when cond is false.
func (p *paramReader) Check(cond bool, format string, args ...any) {
	if !cond {
		p.errs = append(p.errs, fmt.Sprintf(format, args...))
	}
}

// Err reports collected problems. When strict, keys never read are rejected.
func (p *paramReader) Err(strict bool) error {
	errs := p.errs
	if strict {
		var unknown []string
		for k := range p.raw {
			if !p.seen[k] {
				unknown = append(unknown, k)
			}
		}
		sort.Strings(unknown)
		for _, k := range unknown {
			errs = append(errs, fmt.Sprintf("unexpected parameter %q", k))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidHyperparameters, strings.Join(errs, "; "))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// integerLiteral accepts only values written as integers, so 1.0 stays a
// float where the distinction matters.
func integerLiteral(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		if strings.ContainsAny(n.String(), ".eE") {
			return 0, false
		}
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
