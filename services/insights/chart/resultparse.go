// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chart

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Tabular Result Parser
// =============================================================================

// ParseResult recovers a typed, column-aware result set from a raw query
// result.
//
// Description:
//
//	The raw result is whatever the query-execution collaborator handed
//	back: a stringified list of tuples ("[(0, 'BEV', 222), ...]"), a JSON
//	array, a slice of positional rows, or an already-structured slice of
//	mappings. Column names are recovered from the companion query when
//	their count matches the row arity; failing that, an all-string first
//	row is treated as a header row; failing that, generic col_i names are
//	synthesized.
//
//	Rows whose field count disagrees with the header count are dropped
//	silently. Recovered header lists containing duplicate names would
//	collide when zipped into rows, so they are treated as "no hint
//	available". For mapping inputs key order is unrecoverable from Go
//	maps; the query hint supplies it, else keys are sorted.
//
//	ParseResult is total: it never panics and never returns an error. Any
//	unrecoverable input yields an empty set with diagnostics logged.
//
// Inputs:
//
//	data - The raw result. May be nil, a string, []any, [][]any,
//	       []map[string]any, []Row, or a ResultSet.
//	query - Optional source query used to recover column names.
//
// Outputs:
//
//	ResultSet - Uniformly-shaped rows sharing one ordered column list.
//	            Empty on absent or unparseable input.
func ParseResult(data any, query string) (rs ResultSet) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("result parse panicked; returning empty set",
				slog.Any("panic", r))
			rs = ResultSet{}
		}
	}()

	switch d := data.(type) {
	case nil:
		return ResultSet{}
	case ResultSet:
		// Identity: already parsed.
		return d
	case string:
		return parseResultString(d, query)
	case []Row:
		return resultSetFromRows(d, query)
	case []map[string]any:
		anyMaps := make([]map[string]any, len(d))
		copy(anyMaps, d)
		return resultSetFromMaps(anyMaps, query)
	case [][]any:
		rows := make([][]Value, 0, len(d))
		for _, r := range d {
			rows = append(rows, valuesOf(r))
		}
		return zipRows(rows, query)
	case []any:
		return parseResultSlice(d, query)
	default:
		slog.Warn("could not parse query result", slog.String("type", fmt.Sprintf("%T", data)))
		return ResultSet{}
	}
}

// parseResultString handles textual raw results: an optional "Result:"
// label, then the literal tuple-list scanner, the regex tuple splitter,
// and finally a JSON array parse, in that order.
func parseResultString(s, query string) ResultSet {
	if idx := strings.Index(s, "Result:"); idx >= 0 {
		s = s[idx+len("Result:"):]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ResultSet{}
	}

	if strings.HasPrefix(s, "[") && strings.Contains(s, "(") {
		if rows, ok := scanTupleLiteral(s); ok && len(rows) > 0 {
			return zipRows(rows, query)
		}
		slog.Debug("literal tuple scan failed; trying regex extraction")
	}

	if rows := splitTupleText(s); len(rows) > 0 {
		return zipRows(rows, query)
	}

	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return parseResultSlice(arr, query)
	}

	slog.Warn("could not parse query result string",
		slog.String("preview", truncate(s, 120)))
	return ResultSet{}
}

// parseResultSlice handles []any whose elements are mappings or
// positional rows.
func parseResultSlice(items []any, query string) ResultSet {
	if len(items) == 0 {
		return ResultSet{}
	}
	if _, ok := items[0].(map[string]any); ok {
		maps := make([]map[string]any, 0, len(items))
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				maps = append(maps, m)
			}
		}
		return resultSetFromMaps(maps, query)
	}

	var rows [][]Value
	for _, it := range items {
		switch t := it.(type) {
		case []any:
			rows = append(rows, valuesOf(t))
		case []Value:
			rows = append(rows, t)
		}
	}
	return zipRows(rows, query)
}

func valuesOf(raw []any) []Value {
	vals := make([]Value, len(raw))
	for i, v := range raw {
		vals[i] = ValueOf(v)
	}
	return vals
}

// =============================================================================
// Header Recovery and Zipping
// =============================================================================

// zipRows determines header names for positional rows and zips them.
//
// Priority: (a) query-recovered names when their count matches the first
// row's arity and they contain no duplicates; (b) an all-string first row
// when more rows follow; (c) generic col_i names.
func zipRows(rows [][]Value, query string) ResultSet {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ResultSet{}
	}

	arity := len(rows[0])
	headers := ExtractColumnNames(query)
	dataRows := rows

	switch {
	case len(headers) == arity && !hasDuplicates(headers):
		slog.Debug("using query-recovered column names", slog.Any("columns", headers))
	case len(rows) > 1 && allStrings(rows[0]):
		headers = make([]string, arity)
		for i, v := range rows[0] {
			headers[i] = v.Str
		}
		if hasDuplicates(headers) {
			headers = genericColumns(arity)
			break
		}
		dataRows = rows[1:]
	default:
		headers = genericColumns(arity)
	}

	out := ResultSet{Columns: headers}
	for _, r := range dataRows {
		if len(r) != len(headers) {
			// Arity mismatch is partial-failure tolerance, not fatal.
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			row[h] = r[i]
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func resultSetFromMaps(maps []map[string]any, query string) ResultSet {
	if len(maps) == 0 {
		return ResultSet{}
	}
	cols := mapColumns(maps[0], query)
	out := ResultSet{Columns: cols}
	for _, m := range maps {
		if len(m) != len(cols) {
			continue
		}
		row := make(Row, len(cols))
		ok := true
		for _, c := range cols {
			v, present := m[c]
			if !present {
				ok = false
				break
			}
			row[c] = ValueOf(v)
		}
		if ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func resultSetFromRows(rows []Row, query string) ResultSet {
	if len(rows) == 0 {
		return ResultSet{}
	}
	asMaps := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = v
		}
		asMaps[i] = m
	}
	return resultSetFromMaps(asMaps, query)
}

// mapColumns picks a column order for mapping inputs: the query hint when
// it names exactly the keys present, otherwise sorted keys.
func mapColumns(first map[string]any, query string) []string {
	hint := ExtractColumnNames(query)
	if len(hint) == len(first) && !hasDuplicates(hint) {
		all := true
		for _, h := range hint {
			if _, ok := first[h]; !ok {
				all = false
				break
			}
		}
		if all {
			return hint
		}
	}
	cols := make([]string, 0, len(first))
	for k := range first {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func genericColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("col_%d", i)
	}
	return cols
}

func allStrings(vals []Value) bool {
	for _, v := range vals {
		if !v.IsString() {
			return false
		}
	}
	return true
}

func hasDuplicates(names []string) bool {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

// =============================================================================
// Literal Tuple Scanner
// =============================================================================

// scanTupleLiteral parses text shaped like a bracketed list of
// parenthesized groups: [(0, 'BEV', 222), (0, 'PHEV', 119)].
//
// This is a structural literal parse only — numbers, quoted strings (with
// backslash escapes), None, True, and False. Anything else (constructor
// calls, nested containers beyond one tuple level) fails the scan and the
// caller falls through to the regex splitter.
func scanTupleLiteral(s string) ([][]Value, bool) {
	sc := &literalScanner{src: s}
	sc.skipSpace()
	if !sc.consume('[') {
		return nil, false
	}
	var rows [][]Value
	sc.skipSpace()
	if sc.consume(']') {
		return rows, sc.atEnd()
	}
	for {
		sc.skipSpace()
		row, ok := sc.scanTuple()
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
		sc.skipSpace()
		if sc.consume(',') {
			sc.skipSpace()
			if sc.consume(']') {
				return rows, sc.atEnd()
			}
			continue
		}
		if sc.consume(']') {
			return rows, sc.atEnd()
		}
		return nil, false
	}
}

type literalScanner struct {
	src string
	pos int
}

func (sc *literalScanner) atEnd() bool {
	sc.skipSpace()
	return sc.pos >= len(sc.src)
}

func (sc *literalScanner) skipSpace() {
	for sc.pos < len(sc.src) {
		switch sc.src[sc.pos] {
		case ' ', '\t', '\n', '\r':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *literalScanner) consume(b byte) bool {
	if sc.pos < len(sc.src) && sc.src[sc.pos] == b {
		sc.pos++
		return true
	}
	return false
}

func (sc *literalScanner) scanTuple() ([]Value, bool) {
	open, closing := byte('('), byte(')')
	if sc.pos < len(sc.src) && sc.src[sc.pos] == '[' {
		open, closing = '[', ']'
	}
	if !sc.consume(open) {
		return nil, false
	}
	var vals []Value
	sc.skipSpace()
	if sc.consume(closing) {
		return vals, true
	}
	for {
		sc.skipSpace()
		v, ok := sc.scanScalar()
		if !ok {
			return nil, false
		}
		vals = append(vals, v)
		sc.skipSpace()
		if sc.consume(',') {
			sc.skipSpace()
			if sc.consume(closing) {
				return vals, true
			}
			continue
		}
		if sc.consume(closing) {
			return vals, true
		}
		return nil, false
	}
}

func (sc *literalScanner) scanScalar() (Value, bool) {
	if sc.pos >= len(sc.src) {
		return Value{}, false
	}
	c := sc.src[sc.pos]
	switch {
	case c == '\'' || c == '"':
		return sc.scanString(c)
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return sc.scanNumber()
	case strings.HasPrefix(sc.src[sc.pos:], "None"):
		sc.pos += len("None")
		return StringValue(""), true
	case strings.HasPrefix(sc.src[sc.pos:], "True"):
		sc.pos += len("True")
		return StringValue("True"), true
	case strings.HasPrefix(sc.src[sc.pos:], "False"):
		sc.pos += len("False")
		return StringValue("False"), true
	default:
		return Value{}, false
	}
}

func (sc *literalScanner) scanString(quote byte) (Value, bool) {
	sc.pos++ // opening quote
	var sb strings.Builder
	for sc.pos < len(sc.src) {
		c := sc.src[sc.pos]
		switch c {
		case '\\':
			if sc.pos+1 >= len(sc.src) {
				return Value{}, false
			}
			sb.WriteByte(sc.src[sc.pos+1])
			sc.pos += 2
		case quote:
			sc.pos++
			return StringValue(sb.String()), true
		default:
			sb.WriteByte(c)
			sc.pos++
		}
	}
	return Value{}, false
}

func (sc *literalScanner) scanNumber() (Value, bool) {
	start := sc.pos
	if sc.src[sc.pos] == '-' || sc.src[sc.pos] == '+' {
		sc.pos++
	}
	digits := false
	for sc.pos < len(sc.src) {
		c := sc.src[sc.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' {
			if c >= '0' && c <= '9' {
				digits = true
			}
			sc.pos++
			continue
		}
		break
	}
	if !digits {
		return Value{}, false
	}
	return CoerceValue(sc.src[start:sc.pos]), true
}

// =============================================================================
// Regex Tuple Extraction
// =============================================================================

var (
	tupleListRe  = regexp.MustCompile(`\[(\([^)]+\)[,\s]*)+\]`)
	tupleSplitRe = regexp.MustCompile(`\),\s*\(`)
)

// splitTupleText is the tolerant fallback for tuple-shaped text the
// literal scanner rejects (embedded constructor calls, stray tokens).
// Tuples split on "), (" boundaries; values split on commas outside
// quotes and coerce numerically.
func splitTupleText(s string) [][]Value {
	if !tupleListRe.MatchString(s) {
		return nil
	}
	body := strings.Trim(strings.TrimSpace(s), "[]")
	var rows [][]Value
	for _, tuple := range tupleSplitRe.Split(body, -1) {
		tuple = strings.Trim(tuple, "() ")
		if tuple == "" {
			continue
		}
		var vals []Value
		for _, tok := range splitOutsideQuotes(tuple, ',') {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			vals = append(vals, CoerceValue(tok))
		}
		if len(vals) > 0 {
			rows = append(rows, vals)
		}
	}
	return rows
}

// splitOutsideQuotes splits on sep occurrences outside single or double
// quoted runs.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == sep:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	parts = append(parts, s[last:])
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
