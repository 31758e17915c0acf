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
	"regexp"
	"strings"
)

// identDelims are the quoting characters stripped from recovered names.
// Covers bracket-quoted ([County Name]), double-quoted, and backtick
// identifiers across the dialects the upstream generators emit.
const identDelims = "[]`\""

var selectClauseRe = regexp.MustCompile(`(?is)\bSELECT\b(.*?)\bFROM\b`)

// ExtractColumnNames recovers the projected column names from a SQL-like
// SELECT statement.
//
// Description:
//
//	Locates the text between the first SELECT and the first top-level FROM
//	(case-insensitive), splits it on commas that are not nested inside
//	parentheses, and derives one name per projection: an AS alias when
//	present, otherwise the expression with function-call wrappers,
//	identifier quoting, and table qualification stripped. Wildcard
//	projections contribute no name. Internal spaces survive, so
//	"[Legislative District]" recovers as "Legislative District".
//
//	There is no guarantee the input is complete or any particular dialect;
//	any parse failure yields nil, which callers treat as "no hint
//	available".
//
// Inputs:
//
//	query - The SQL-like statement. May be empty or malformed.
//
// Outputs:
//
//	[]string - Names in projection order, one per non-wildcard projection.
//	           Nil when nothing can be recovered.
func ExtractColumnNames(query string) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	clause := selectClause(query)
	if clause == "" {
		return nil
	}

	var names []string
	for _, expr := range splitTopLevel(clause, ',') {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}

		if alias, ok := topLevelAlias(expr); ok {
			names = append(names, strings.Trim(alias, identDelims))
			continue
		}

		cleaned := stripFunctionWrappers(expr)
		cleaned = strings.TrimSpace(strings.Trim(cleaned, identDelims))
		if idx := strings.LastIndex(cleaned, "."); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if cleaned == "*" {
			continue
		}
		if cleaned == "" {
			// Expressions that reduce to nothing (e.g. bare parens) keep
			// their original text, minus quoting, as the column name.
			cleaned = strings.TrimSpace(strings.Trim(expr, identDelims))
			if cleaned == "" {
				continue
			}
		}
		names = append(names, cleaned)
	}
	return names
}

// selectClause returns the projection list between the first SELECT and
// the first FROM that sits at paren depth zero.
func selectClause(query string) string {
	m := selectClauseRe.FindStringSubmatchIndex(query)
	if m == nil {
		return ""
	}
	// The regex finds the first FROM anywhere; re-scan from SELECT for the
	// first FROM at depth zero so subquery projections do not truncate
	// the clause.
	start := m[2]
	depth := 0
	upper := strings.ToUpper(query)
	for i := start; i < len(query); i++ {
		switch query[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && hasKeywordAt(upper, i, "FROM") {
				return query[start:i]
			}
		}
	}
	return query[m[2]:m[3]]
}

// hasKeywordAt reports whether the upper-cased query has the keyword at i
// with word boundaries on both sides.
func hasKeywordAt(upper string, i int, kw string) bool {
	if !strings.HasPrefix(upper[i:], kw) {
		return false
	}
	if i > 0 && isWordByte(upper[i-1]) {
		return false
	}
	end := i + len(kw)
	if end < len(upper) && isWordByte(upper[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// splitTopLevel splits s on sep occurrences outside parentheses.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// topLevelAlias finds a trailing "AS alias" at paren depth zero.
//
// CAST(x AS INT) has an AS, but inside parens; only a top-level AS names
// the projection.
func topLevelAlias(expr string) (string, bool) {
	depth := 0
	upper := strings.ToUpper(expr)
	for i := len(expr) - 1; i >= 0; i-- {
		switch expr[i] {
		case ')':
			depth++
		case '(':
			depth--
		default:
			if depth == 0 && hasKeywordAt(upper, i, "AS") {
				alias := strings.TrimSpace(expr[i+2:])
				if alias != "" {
					return alias, true
				}
				return "", false
			}
		}
	}
	return "", false
}

var funcWrapperRe = regexp.MustCompile(`^\s*\w+\s*\((.*)\)\s*$`)

// stripFunctionWrappers removes call syntax layers: SUM([Count]) -> [Count],
// COUNT(*) -> *. Applied repeatedly for nested calls.
func stripFunctionWrappers(expr string) string {
	for {
		m := funcWrapperRe.FindStringSubmatch(expr)
		if m == nil {
			return expr
		}
		expr = strings.TrimSpace(m[1])
	}
}
