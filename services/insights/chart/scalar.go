// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chart recovers typed, column-aware record sets from loosely
// structured query-result text and synthesizes declarative chart
// specifications from them. It is the core of the Insights pipeline:
// Parser -> Intent -> Selector -> Normalizer -> Synthesizer.
//
// Every public operation in this package is total: parse ambiguity,
// malformed completion output, and capability failures all resolve to a
// documented fallback rather than an error. The only caller-visible
// "failure" is the normal no-chart outcome.
//
// Thread Safety:
//
//	The package holds no mutable process-wide state. All types are either
//	immutable after construction or owned by a single request.
package chart

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Tagged Scalar Values
// =============================================================================

// ValueKind tags the scalar type recovered for a result cell.
type ValueKind int

const (
	// KindString is the default kind for anything that is not numeric.
	KindString ValueKind = iota

	// KindInt is an integer recovered from text without a decimal point.
	KindInt

	// KindFloat is a number recovered from text with a decimal point.
	KindFloat
)

// Value is a scalar recovered from a raw query result.
//
// Description:
//
//	Result cells arrive as untyped text. Coercion (decimal point -> float,
//	parseable integer -> int, everything else -> string) is applied exactly
//	once, at parse time, and the kind is fixed thereafter. Date-like values
//	stay strings in whatever rendering the upstream produced (ISO-8601 for
//	well-behaved sources).
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
}

// StringValue returns a string-kinded Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue returns an int-kinded Value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue returns a float-kinded Value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// CoerceValue converts one raw text token into a typed Value.
//
// Description:
//
//	Applies the fixed coercion rules: a token containing a decimal point
//	that parses as a float becomes KindFloat; a token without one that
//	parses as an integer becomes KindInt; anything else stays a string
//	with surrounding single/double quotes stripped.
//
// Inputs:
//
//	token - Raw cell text, already trimmed of tuple punctuation.
//
// Outputs:
//
//	Value - The typed scalar.
func CoerceValue(token string) Value {
	token = strings.TrimSpace(token)
	unquoted := strings.Trim(token, `'"`)
	if strings.Contains(token, ".") {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return FloatValue(f)
		}
		return StringValue(unquoted)
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return IntValue(i)
	}
	return StringValue(unquoted)
}

// ValueOf converts an already-typed Go scalar into a Value.
//
// Used on the identity path of ParseResult where the input is structured
// data (JSON numbers, spreadsheet cells) rather than text. No re-coercion
// of strings happens here: a string stays a string.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return StringValue("")
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return StringValue(strconv.FormatBool(t))
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return floatOrInt(float64(t))
	case float64:
		// JSON numbers always decode as float64; preserve integral values
		// as ints so re-rendering matches the upstream text.
		return floatOrInt(t)
	case json.Number:
		return CoerceValue(t.String())
	default:
		return StringValue(fmt.Sprintf("%v", t))
	}
}

func floatOrInt(f float64) Value {
	if f == float64(int64(f)) {
		return IntValue(int64(f))
	}
	return FloatValue(f)
}

// String renders the value the way the upstream text would.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return v.Str
	}
}

// AsFloat returns the numeric value, or 0 for strings.
func (v Value) AsFloat() float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.Int)
	case KindFloat:
		return v.Float
	default:
		return 0
	}
}

// IsString reports whether the value is string-kinded.
func (v Value) IsString() bool { return v.Kind == KindString }

// MarshalJSON renders the underlying scalar, not the tagged wrapper.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	default:
		return json.Marshal(v.Str)
	}
}

// =============================================================================
// Rows
// =============================================================================

// Row is one record of a recovered result set, keyed by column name.
type Row map[string]Value

// ResultSet is an ordered, uniformly-shaped recovered result.
//
// Description:
//
//	Columns carries the shared key order for every row; each Row has
//	exactly the keys in Columns. Go maps are unordered, so the ordered
//	key set the upstream format implies lives here instead.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the set has no rows.
func (rs ResultSet) Empty() bool { return len(rs.Rows) == 0 }

// Len returns the number of rows.
func (rs ResultSet) Len() int { return len(rs.Rows) }

// JSON renders the rows as a JSON array of objects with keys in column
// order. Used verbatim in completion prompts, where key order keeps the
// rendering aligned with the source projection.
func (rs ResultSet) JSON() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, row := range rs.Rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('{')
		for j, col := range rs.Columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			key, _ := json.Marshal(col)
			val, _ := json.Marshal(row[col])
			sb.Write(key)
			sb.WriteString(": ")
			sb.Write(val)
		}
		sb.WriteByte('}')
	}
	sb.WriteByte(']')
	return sb.String()
}
