package vector

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Filter is a metadata filter document in the operator syntax shared with Pinecone:
//
//	{"genre": "fantasy"}                       implicit $eq
//	{"year": {"$gte": 1990, "$lt": 2000}}
//	{"genre": {"$in": ["fantasy", "sci-fi"]}}
//	{"$or": [{"author": "Le Guin"}, {"author": "Tolkien"}]}
//
// Supported operators: $eq $ne $gt $gte $lt $lte $in $nin $exists $and $or.
type Filter map[string]any

// Validate reports the first unsupported operator or malformed operand.
func (f Filter) Validate() error {
	for key, cond := range f {
		switch key {
		case "$and", "$or":
			subs, ok := cond.([]any)
			if !ok {
				return fmt.Errorf("filter: %s expects an array", key)
			}
			for _, sub := range subs {
				m, ok := sub.(map[string]any)
				if !ok {
					return fmt.Errorf("filter: %s entries must be objects", key)
				}
				if err := Filter(m).Validate(); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return fmt.Errorf("filter: unsupported top-level operator %s", key)
		}
		ops, ok := cond.(map[string]any)
		if !ok {
			continue
		}
		for op, operand := range ops {
			switch op {
			case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
			case "$in", "$nin":
				if _, ok := operand.([]any); !ok {
					return fmt.Errorf("filter: %s on %q expects an array", op, key)
				}
			case "$exists":
				if _, ok := operand.(bool); !ok {
					return fmt.Errorf("filter: $exists on %q expects a boolean", key)
				}
			default:
				return fmt.Errorf("filter: unsupported operator %s on %q", op, key)
			}
		}
	}
	return nil
}

// Predicate turns the filter into a record predicate. An empty filter yields nil.
func (f Filter) Predicate() Predicate {
	if len(f) == 0 {
		return nil
	}
	return func(rec Record) bool { return f.Match(rec.Metadata) }
}

// Match reports whether metadata satisfies every clause of the filter.
func (f Filter) Match(metadata map[string]any) bool {
	for key, cond := range f {
		switch key {
		case "$and":
			subs, _ := cond.([]any)
			for _, sub := range subs {
				m, _ := sub.(map[string]any)
				if !Filter(m).Match(metadata) {
					return false
				}
			}
			continue
		case "$or":
			subs, _ := cond.([]any)
			matched := false
			for _, sub := range subs {
				m, _ := sub.(map[string]any)
				if Filter(m).Match(metadata) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		value, present := metadata[key]
		ops, isOps := cond.(map[string]any)
		if !isOps {
			if !present || !matchesEqual(value, cond) {
				return false
			}
			continue
		}
		for op, operand := range ops {
			if !evalOp(op, value, present, operand) {
				return false
			}
		}
	}
	return true
}

func evalOp(op string, value any, present bool, operand any) bool {
	switch op {
	case "$exists":
		want, _ := operand.(bool)
		return present == want
	case "$ne":
		return !present || !matchesEqual(value, operand)
	case "$nin":
		if !present {
			return true
		}
		list, _ := operand.([]any)
		for _, item := range list {
			if matchesEqual(value, item) {
				return false
			}
		}
		return true
	}
	if !present {
		return false
	}
	switch op {
	case "$eq":
		return matchesEqual(value, operand)
	case "$in":
		list, _ := operand.([]any)
		for _, item := range list {
			if matchesEqual(value, item) {
				return true
			}
		}
		return false
	case "$gt", "$gte", "$lt", "$lte":
		a, okA := toFloat(value)
		b, okB := toFloat(operand)
		if !okA || !okB {
			return false
		}
		switch op {
		case "$gt":
			return a > b
		case "$gte":
			return a >= b
		case "$lt":
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

// matchesEqual compares a metadata value with an operand. List-valued metadata
// matches when any element equals the operand.
func matchesEqual(value, operand any) bool {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if scalarEqual(item, operand) {
				return true
			}
		}
		return false
	}
	if list, ok := value.([]string); ok {
		for _, item := range list {
			if scalarEqual(item, operand) {
				return true
			}
		}
		return false
	}
	return scalarEqual(value, operand)
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
