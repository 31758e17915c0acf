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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const districtQuery = "SELECT [Legislative District] AS District, [Vehicle Type] AS Type, COUNT(*) AS vehicle_count FROM EVs GROUP BY [Legislative District], [Vehicle Type]"

func TestParseResult_TupleStringWithQueryColumns(t *testing.T) {
	rs := ParseResult("[(0, 'BEV', 222), (0, 'PHEV', 119)]", districtQuery)

	require.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"District", "Type", "vehicle_count"}, rs.Columns)

	assert.Equal(t, IntValue(0), rs.Rows[0]["District"])
	assert.Equal(t, StringValue("BEV"), rs.Rows[0]["Type"])
	assert.Equal(t, IntValue(222), rs.Rows[0]["vehicle_count"])
	assert.Equal(t, StringValue("PHEV"), rs.Rows[1]["Type"])
	assert.Equal(t, IntValue(119), rs.Rows[1]["vehicle_count"])
}

func TestParseResult_ResultLabelStripped(t *testing.T) {
	rs := ParseResult("Result: [(1, 'a'), (2, 'b')]", "")
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"col_0", "col_1"}, rs.Columns)
	assert.Equal(t, IntValue(1), rs.Rows[0]["col_0"])
}

func TestParseResult_NumericCoercion(t *testing.T) {
	rs := ParseResult("[(1, 2.5, 'x')]", "")
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, IntValue(1), rs.Rows[0]["col_0"])
	assert.Equal(t, FloatValue(2.5), rs.Rows[0]["col_1"])
	assert.Equal(t, StringValue("x"), rs.Rows[0]["col_2"])
}

func TestParseResult_HeaderRowDetected(t *testing.T) {
	// First row all strings, more than one row, no query hint: the first
	// row is the header.
	rs := ParseResult("[('County', 'Total'), ('King', 5000), ('Pierce', 3000)]", "")

	require.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"County", "Total"}, rs.Columns)
	assert.Equal(t, StringValue("King"), rs.Rows[0]["County"])
	assert.Equal(t, IntValue(5000), rs.Rows[0]["Total"])
}

func TestParseResult_QueryHintBeatsHeaderRow(t *testing.T) {
	rs := ParseResult("[('King', 'BEV'), ('Pierce', 'PHEV')]",
		"SELECT County AS region, Type AS kind FROM EVs")

	require.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"region", "kind"}, rs.Columns)
	assert.Equal(t, StringValue("King"), rs.Rows[0]["region"])
}

func TestParseResult_QueryHintCountMismatchIgnored(t *testing.T) {
	// Two recovered names, three fields per row: the hint is unusable and
	// generic names apply (single row, so no header-row candidate).
	rs := ParseResult("[(1, 2, 3)]", "SELECT a, b FROM t")
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{"col_0", "col_1", "col_2"}, rs.Columns)
}

func TestParseResult_DuplicateHintTreatedAsNoHint(t *testing.T) {
	rs := ParseResult("[(1, 2)]", "SELECT x.val, y.val FROM x JOIN y")
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{"col_0", "col_1"}, rs.Columns)
}

func TestParseResult_ArityMismatchRowsDropped(t *testing.T) {
	rs := ParseResult("[(1, 'a'), (2, 'b', 99), (3, 'c')]", "")
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, IntValue(1), rs.Rows[0]["col_0"])
	assert.Equal(t, IntValue(3), rs.Rows[1]["col_0"])
}

func TestParseResult_UniformKeys(t *testing.T) {
	rs := ParseResult("[(0, 'BEV', 222), (0, 'PHEV', 119), (1, 'BEV', 55)]", districtQuery)
	require.False(t, rs.Empty())
	for _, row := range rs.Rows {
		assert.Len(t, row, len(rs.Columns))
		for _, col := range rs.Columns {
			_, ok := row[col]
			assert.True(t, ok, "row missing column %q", col)
		}
	}
}

func TestParseResult_Idempotent(t *testing.T) {
	first := ParseResult("[(0, 'BEV', 222)]", districtQuery)
	second := ParseResult(first, districtQuery)
	assert.Equal(t, first, second)
}

func TestParseResult_MapsIdentity(t *testing.T) {
	in := []map[string]any{
		{"County": "King", "Total": 5000},
		{"County": "Pierce", "Total": 3000},
	}
	rs := ParseResult(in, "")
	require.Equal(t, 2, rs.Len())
	// Key order is unrecoverable from Go maps without a hint: sorted.
	assert.Equal(t, []string{"County", "Total"}, rs.Columns)
	assert.Equal(t, StringValue("King"), rs.Rows[0]["County"])
	assert.Equal(t, IntValue(5000), rs.Rows[0]["Total"])
}

func TestParseResult_MapsWithQueryHintOrder(t *testing.T) {
	in := []map[string]any{{"Total": 5000, "County": "King"}}
	rs := ParseResult(in, "SELECT Total, County FROM t")
	assert.Equal(t, []string{"Total", "County"}, rs.Columns)
}

func TestParseResult_JSONArray(t *testing.T) {
	t.Run("array of objects", func(t *testing.T) {
		rs := ParseResult(`[{"make": "Tesla", "count": 50000}]`, "")
		require.Equal(t, 1, rs.Len())
		assert.Equal(t, StringValue("Tesla"), rs.Rows[0]["make"])
		assert.Equal(t, IntValue(50000), rs.Rows[0]["count"])
	})

	t.Run("array of arrays", func(t *testing.T) {
		rs := ParseResult(`[["Tesla", 50000], ["Nissan", 20000]]`, "SELECT Make, Total FROM EVs")
		require.Equal(t, 2, rs.Len())
		assert.Equal(t, []string{"Make", "Total"}, rs.Columns)
		assert.Equal(t, IntValue(20000), rs.Rows[1]["Total"])
	})
}

func TestParseResult_SliceOfTuples(t *testing.T) {
	in := [][]any{{"King", 5000}, {"Pierce", 3000}}
	rs := ParseResult(in, "")
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"col_0", "col_1"}, rs.Columns)
}

func TestParseResult_RegexFallbackForNonLiteralTuples(t *testing.T) {
	// Bare identifiers fail the literal scanner; the regex splitter still
	// recovers rows, coercing what it can.
	rs := ParseResult("[(1, foo), (2, bar)]", "")
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, IntValue(1), rs.Rows[0]["col_0"])
	assert.Equal(t, StringValue("foo"), rs.Rows[0]["col_1"])
}

func TestParseResult_QuotedCommaSurvivesRegexPath(t *testing.T) {
	rs := ParseResult("[(1, 'King, WA'), (2, unquoted)]", "")
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, StringValue("King, WA"), rs.Rows[0]["col_1"])
}

func TestParseResult_EmptyInputs(t *testing.T) {
	assert.True(t, ParseResult(nil, "").Empty())
	assert.True(t, ParseResult("", "").Empty())
	assert.True(t, ParseResult("   ", "").Empty())
	assert.True(t, ParseResult("[]", "").Empty())
	assert.True(t, ParseResult([]any{}, "").Empty())
	assert.True(t, ParseResult([]map[string]any{}, "").Empty())
}

func TestParseResult_UnparseableYieldsEmpty(t *testing.T) {
	assert.True(t, ParseResult("no rows matched your filter", "").Empty())
	assert.True(t, ParseResult(42, "").Empty())
	assert.True(t, ParseResult(struct{ A int }{1}, "").Empty())
}

func TestParseResult_NegativeAndFloatLiterals(t *testing.T) {
	rs := ParseResult("[(-5, 3.25), (7, -0.5)]", "")
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, IntValue(-5), rs.Rows[0]["col_0"])
	assert.Equal(t, FloatValue(3.25), rs.Rows[0]["col_1"])
	assert.Equal(t, FloatValue(-0.5), rs.Rows[1]["col_1"])
}

func TestParseResult_NoneBecomesEmptyString(t *testing.T) {
	rs := ParseResult("[(1, None)]", "")
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, StringValue(""), rs.Rows[0]["col_1"])
}

func TestResultSetJSON_ColumnOrder(t *testing.T) {
	rs := ParseResult("[(0, 'BEV', 222)]", districtQuery)
	got := rs.JSON()
	assert.Equal(t, `[{"District": 0, "Type": "BEV", "vehicle_count": 222}]`, got)
}

func TestValueMarshalJSON(t *testing.T) {
	b, err := IntValue(7).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "7", string(b))

	b, err = FloatValue(2.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "2.5", string(b))

	b, err = StringValue("BEV").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"BEV"`, string(b))
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, IntValue(10), CoerceValue("10"))
	assert.Equal(t, FloatValue(1.5), CoerceValue("1.5"))
	assert.Equal(t, StringValue("BEV"), CoerceValue("'BEV'"))
	assert.Equal(t, StringValue("BEV"), CoerceValue(`"BEV"`))
	assert.Equal(t, StringValue("2024-01-01"), CoerceValue("'2024-01-01'"))
	// A dotted non-number stays a string, unquoted.
	assert.Equal(t, StringValue("v1.2"), CoerceValue("v1.2"))
}
