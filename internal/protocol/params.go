package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Limit bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Params holds the permitted query parameters. Unknown keys are ignored.
type Params struct {
	Limit *int `json:"limit,omitempty"`
}

// WithLimit returns params with the given limit.
func WithLimit(n int) Params {
	return Params{Limit: &n}
}

// EffectiveLimit returns the limit clamped to [1, max]. A missing limit
// yields DefaultLimit (itself clamped). max <= 0 means MaxLimit.
func (p Params) EffectiveLimit(max int) int {
	if max <= 0 {
		max = MaxLimit
	}
	n := DefaultLimit
	if p.Limit != nil {
		n = *p.Limit
	}
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}

// Clamp returns a copy of p whose limit is explicit and within [1, max].
func (p Params) Clamp(max int) Params {
	return WithLimit(p.EffectiveLimit(max))
}

// UnmarshalJSON accepts numeric or numeric-string limits.
func (p *Params) UnmarshalJSON(data []byte) error {
	*p = Params{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("%w: params must be an object", ErrMalformed)
	}

	rawLimit, ok := raw["limit"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawLimit), []byte("null")) {
		return nil
	}

	n, err := parseLimit(rawLimit)
	if err != nil {
		return err
	}
	p.Limit = &n
	return nil
}

func parseLimit(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return saturate(f), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return saturate(f), nil
		}
	}

	return 0, fmt.Errorf("%w: limit must be a number", ErrMalformed)
}

// saturate truncates f toward zero, pinning values outside the int32 range.
func saturate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
