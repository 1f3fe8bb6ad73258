package qcode

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var paramRe = regexp.MustCompile(`^\$([1-9][0-9]*)$`)

// ParseStatement reads a statement written as JSON or YAML. String values
// of the form "$N" become parameters, "$$" escapes a leading dollar.
func ParseStatement(data []byte) (*Statement, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("statement must be an object, got %T", raw)
	}
	return DecodeStatement(m)
}

// DecodeStatement builds a statement from an already decoded object.
func DecodeStatement(m map[string]any) (*Statement, error) {
	var st Statement

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused: true,
		Result:      &st,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(normalize(m)); err != nil {
		return nil, fmt.Errorf("invalid statement: %w", err)
	}
	if st.Type == STNone {
		return nil, fmt.Errorf("invalid statement: type is required")
	}
	if st.Table == "" {
		return nil, fmt.Errorf("invalid statement: table is required")
	}
	return &st, nil
}

func decodeRaw(data []byte) (any, error) {
	var v any
	trimmed := bytes.TrimSpace(data)

	// YAML flow mappings also start with a brace, only strict JSON takes
	// the JSON path so large numbers keep their precision.
	if len(trimmed) != 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		d := json.NewDecoder(bytes.NewReader(trimmed))
		d.UseNumber()
		if err := d.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid json statement: %w", err)
		}
		return v, nil
	}

	if err := yaml.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("invalid yaml statement: %w", err)
	}
	return v, nil
}

// normalize turns numbers into int64 or float64, "$N" into Param and
// yaml's map[any]any into map[string]any.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out

	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out

	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)

	case int:
		return int64(x)

	case string:
		if m := paramRe.FindStringSubmatch(x); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return Param(n)
			}
		}
		if strings.HasPrefix(x, "$$") {
			return x[1:]
		}
		return x
	}
	return v
}
