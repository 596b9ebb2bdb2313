package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Options configures a round. Known keys are decoded into typed fields and
// every other key is kept in Extra so a round's configuration round-trips
// without loss.
type Options struct {
	Difficulty string
	TotalItems int
	Categories []string
	// Adaptive is nil when unset so an explicit false survives defaults.
	Adaptive  *bool
	Language  string
	Role      string
	TimeLimit time.Duration
	Extra     map[string]any
}

const (
	optDifficulty = "difficulty"
	optTotalItems = "total_items"
	optCategories = "categories"
	optAdaptive   = "adaptive"
	optLanguage   = "language"
	optRole       = "role"
	optTimeLimit  = "time_limit"
)

// ParseOptions decodes a loosely typed options map.
func ParseOptions(m map[string]any) (Options, error) {
	var o Options
	for k, v := range m {
		var err error
		switch k {
		case optDifficulty:
			o.Difficulty, err = asString(k, v)
		case optLanguage:
			o.Language, err = asString(k, v)
		case optRole:
			o.Role, err = asString(k, v)
		case optTotalItems:
			var n float64
			n, err = asNumber(k, v)
			o.TotalItems = int(n)
		case optAdaptive:
			b, ok := v.(bool)
			if !ok {
				err = fmt.Errorf("option %s: expected bool, got %T", k, v)
			}
			o.Adaptive = &b
		case optCategories:
			o.Categories, err = asStrings(k, v)
		case optTimeLimit:
			o.TimeLimit, err = asDuration(k, v)
		default:
			if o.Extra == nil {
				o.Extra = make(map[string]any)
			}
			o.Extra[k] = v
		}
		if err != nil {
			return Options{}, err
		}
	}
	return o, nil
}

// Map renders the options back to a loosely typed map.
func (o Options) Map() map[string]any {
	m := make(map[string]any, len(o.Extra)+7)
	for k, v := range o.Extra {
		m[k] = v
	}
	if o.Difficulty != "" {
		m[optDifficulty] = o.Difficulty
	}
	if o.TotalItems > 0 {
		m[optTotalItems] = o.TotalItems
	}
	if len(o.Categories) > 0 {
		m[optCategories] = o.Categories
	}
	if o.Adaptive != nil {
		m[optAdaptive] = *o.Adaptive
	}
	if o.Language != "" {
		m[optLanguage] = o.Language
	}
	if o.Role != "" {
		m[optRole] = o.Role
	}
	if o.TimeLimit > 0 {
		m[optTimeLimit] = o.TimeLimit.String()
	}
	return m
}

// WithDefaults fills unset fields from d.
func (o Options) WithDefaults(d Options) Options {
	if o.Difficulty == "" {
		o.Difficulty = d.Difficulty
	}
	if o.TotalItems <= 0 {
		o.TotalItems = d.TotalItems
	}
	if len(o.Categories) == 0 {
		o.Categories = d.Categories
	}
	if o.Adaptive == nil {
		o.Adaptive = d.Adaptive
	}
	if o.Language == "" {
		o.Language = d.Language
	}
	if o.Role == "" {
		o.Role = d.Role
	}
	if o.TimeLimit <= 0 {
		o.TimeLimit = d.TimeLimit
	}
	return o
}

// AdaptiveEnabled reports whether adaptive expansion was turned on.
func (o Options) AdaptiveEnabled() bool {
	return o.Adaptive != nil && *o.Adaptive
}

// Bool returns a pointer to b, for option literals.
func Bool(b bool) *bool {
	return &b
}

func (o Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Map())
}

func (o *Options) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := ParseOptions(m)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// UnmarshalYAML decodes options from configuration files.
func (o *Options) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseOptions(raw)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func asString(k string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %s: expected string, got %T", k, v)
	}
	return s, nil
}

func asNumber(k string, v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("option %s: expected number, got %T", k, v)
}

func asStrings(k string, v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("option %s: expected string list, got element %T", k, e)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("option %s: expected string list, got %T", k, v)
}

func asDuration(k string, v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		return time.ParseDuration(d)
	case time.Duration:
		return d, nil
	}
	n, err := asNumber(k, v)
	if err != nil {
		return 0, err
	}
	// Bare numbers are minutes.
	return time.Duration(n * float64(time.Minute)), nil
}
