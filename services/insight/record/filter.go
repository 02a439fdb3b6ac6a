// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package record

import (
	"fmt"
	"time"
)

// =============================================================================
// Filter expression
// =============================================================================

// Op is a filter comparison operator.
type Op string

const (
	// OpEq matches scalar equality. Against a list-valued field it
	// matches when any element equals the value.
	OpEq Op = "eq"

	// OpIn matches when the field value is a member of the given set.
	OpIn Op = "in"

	// OpGte matches numeric or timestamp values >= the bound.
	OpGte Op = "gte"

	// OpLte matches numeric or timestamp values <= the bound.
	OpLte Op = "lte"
)

// Term is one field comparison.
type Term struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Filter is a conjunction of terms. A nil or empty filter matches every
// record.
type Filter []Term

// Eq builds an equality term.
func Eq(field string, value any) Term {
	return Term{Field: field, Op: OpEq, Value: value}
}

// In builds a set-membership term.
func In(field string, values ...any) Term {
	return Term{Field: field, Op: OpIn, Value: values}
}

// Gte builds a lower-bound term (inclusive).
func Gte(field string, value any) Term {
	return Term{Field: field, Op: OpGte, Value: value}
}

// Lte builds an upper-bound term (inclusive).
func Lte(field string, value any) Term {
	return Term{Field: field, Op: OpLte, Value: value}
}

// Matches evaluates the filter against a record.
//
// Description:
//
//	Terms are ANDed; the first failing term short-circuits. An unknown
//	field or an operator/value combination that cannot be compared is an
//	error, not a silent non-match, so a typo in a caller's filter
//	surfaces instead of returning an empty result. A missing optional
//	value (nil timestamp or duration) fails range terms without error.
//
// Outputs:
//
//	bool - Whether every term matched.
//	error - Non-nil for an unknown field or an uncomparable term.
func (f Filter) Matches(rec Record) (bool, error) {
	for _, term := range f {
		value, ok := rec.Field(term.Field)
		if !ok {
			return false, fmt.Errorf("record kind %q has no field %q", rec.RecordKind(), term.Field)
		}
		matched, err := term.matches(value)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", term.Field, err)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func (t Term) matches(fieldValue any) (bool, error) {
	switch t.Op {
	case OpEq:
		return matchEq(fieldValue, t.Value)
	case OpIn:
		return matchIn(fieldValue, t.Value)
	case OpGte, OpLte:
		return t.matchRange(fieldValue)
	default:
		return false, fmt.Errorf("unknown filter op %q", t.Op)
	}
}

func (t Term) matchRange(fieldValue any) (bool, error) {
	if ft, isTime := asTime(fieldValue); isTime {
		bt, ok := asTime(t.Value)
		if !ok {
			return false, fmt.Errorf("timestamp field requires a timestamp bound, got %T", t.Value)
		}
		if ft.IsZero() || bt.IsZero() {
			return false, nil
		}
		if t.Op == OpGte {
			return !ft.Before(bt), nil
		}
		return !ft.After(bt), nil
	}

	bf, ok := asFloat(t.Value)
	if !ok {
		return false, fmt.Errorf("numeric field requires a numeric bound, got %T", t.Value)
	}
	ff, ok := asFloat(fieldValue)
	if !ok {
		if isMissingNumber(fieldValue) {
			return false, nil
		}
		return false, fmt.Errorf("cannot order %T", fieldValue)
	}
	if t.Op == OpGte {
		return ff >= bf, nil
	}
	return ff <= bf, nil
}

func matchEq(fieldValue, want any) (bool, error) {
	// List-valued fields match on containment.
	if list, ok := fieldValue.([]string); ok {
		wantStr, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("list field requires a string value, got %T", want)
		}
		for _, v := range list {
			if v == wantStr {
				return true, nil
			}
		}
		return false, nil
	}
	return scalarEqual(fieldValue, want), nil
}

func matchIn(fieldValue, set any) (bool, error) {
	values, err := asValueSet(set)
	if err != nil {
		return false, err
	}
	for _, candidate := range values {
		ok, err := matchEq(fieldValue, candidate)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func asValueSet(set any) ([]any, error) {
	switch s := set.(type) {
	case []any:
		return s, nil
	case []string:
		out := make([]any, len(s))
		for i, v := range s {
			out[i] = v
		}
		return out, nil
	case []int64:
		out := make([]any, len(s))
		for i, v := range s {
			out[i] = v
		}
		return out, nil
	case []int:
		out := make([]any, len(s))
		for i, v := range s {
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("in operator requires a slice value, got %T", set)
	}
}

// scalarEqual compares across the narrow type set records expose:
// strings byte-wise, numbers by value, timestamps by instant. A missing
// timestamp is never equal to anything.
func scalarEqual(a, b any) bool {
	if at, ok := asTime(a); ok {
		bt, ok := asTime(b)
		return ok && !at.IsZero() && at.Equal(bt)
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return a == b
}

func isMissingNumber(v any) bool {
	if v == nil {
		return true
	}
	p, ok := v.(*float64)
	return ok && p == nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case Time:
		return t.Time, true
	case *Time:
		if t == nil {
			return time.Time{}, true
		}
		return t.Time, true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}
