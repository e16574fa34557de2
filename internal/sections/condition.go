package sections

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCondition is returned for expressions that are not
// "path op literal".
var ErrInvalidCondition = errors.New("sections: invalid condition")

// ErrUnresolved is returned when the path is missing from the data or
// its value cannot be compared with the literal.
var ErrUnresolved = errors.New("sections: condition not resolvable")

// Condition is a parsed "path op literal" expression, for example
// "financial.total > 0".
type Condition struct {
	Path    string
	Op      string
	Literal string
}

var operators = map[string]bool{">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true}

// ParseCondition splits s into exactly three whitespace separated tokens.
func ParseCondition(s string) (Condition, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Condition{}, fmt.Errorf("%w: want 3 tokens, got %d in %q", ErrInvalidCondition, len(fields), s)
	}
	if !operators[fields[1]] {
		return Condition{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, fields[1])
	}
	return Condition{Path: fields[0], Op: fields[1], Literal: fields[2]}, nil
}

// Eval compares the value at c.Path in data with the literal. A numeric
// literal compares numerically, true/false compare as booleans, anything
// else (optionally quoted) compares as a string with == and != only.
func (c Condition) Eval(data map[string]any) (bool, error) {
	value, ok := lookupPath(data, c.Path)
	if !ok || value == nil {
		return false, fmt.Errorf("%w: %s not found", ErrUnresolved, c.Path)
	}

	if want, err := strconv.ParseFloat(c.Literal, 64); err == nil {
		got, ok := coerceNumber(value)
		if !ok {
			return false, fmt.Errorf("%w: %s is not a number", ErrUnresolved, c.Path)
		}
		return compareNumbers(got, c.Op, want), nil
	}

	switch lit := strings.ToLower(c.Literal); lit {
	case "true", "false":
		got, ok := coerceBool(value)
		if !ok {
			return false, fmt.Errorf("%w: %s is not a boolean", ErrUnresolved, c.Path)
		}
		return compareEquality(got == (lit == "true"), c.Op)
	}

	want := c.Literal
	if unq, err := strconv.Unquote(want); err == nil {
		want = unq
	} else if len(want) >= 2 && want[0] == '\'' && want[len(want)-1] == '\'' {
		want = want[1 : len(want)-1]
	}
	return compareEquality(coerceString(value) == want, c.Op)
}

func compareNumbers(got float64, op string, want float64) bool {
	switch op {
	case ">":
		return got > want
	case "<":
		return got < want
	case ">=":
		return got >= want
	case "<=":
		return got <= want
	case "==":
		return got == want
	default:
		return got != want
	}
}

func compareEquality(equal bool, op string) (bool, error) {
	switch op {
	case "==":
		return equal, nil
	case "!=":
		return !equal, nil
	}
	return false, fmt.Errorf("%w: operator %s needs a number", ErrUnresolved, op)
}

// Evaluate parses and evaluates expr. keep is true unless the condition
// was understood and came out false; err explains why a section was kept
// without a verdict.
func Evaluate(expr string, data map[string]any) (keep bool, err error) {
	cond, err := ParseCondition(expr)
	if err != nil {
		return true, err
	}
	ok, err := cond.Eval(data)
	if err != nil {
		return true, err
	}
	return ok, nil
}

// lookupPath walks dotted keys through nested maps. An exact match on the
// whole dotted key wins.
func lookupPath(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		if f, ok := coerceNumber(value); ok {
			return f != 0, true
		}
		return false, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
