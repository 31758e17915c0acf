// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package spreadsheet loads uploaded tabular files (.xlsx via excelize,
// .csv via encoding/csv) into a uniform in-memory table for the insights
// service to query.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxPreviewRows bounds the row sample embedded in prompts.
const maxPreviewRows = 50

// Table is a loaded spreadsheet: a header row plus data rows. Cells are
// kept as strings; numeric interpretation happens downstream where the
// query semantics are known.
type Table struct {
	// Columns is the header row.
	Columns []string

	// Rows are the data rows, each the same width as Columns.
	Rows [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Records renders the table as one map per row, keyed by column name.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// Preview renders a bounded header-first sample for prompt embedding.
func (t *Table) Preview() [][]string {
	n := len(t.Rows)
	if n > maxPreviewRows {
		n = maxPreviewRows
	}
	out := make([][]string, 0, n+1)
	out = append(out, t.Columns)
	out = append(out, t.Rows[:n]...)
	return out
}

// Load reads a spreadsheet from disk, dispatching on file extension.
//
// Inputs:
//
//	path - Path to a .xlsx or .csv file.
//
// Outputs:
//
//	*Table - The loaded table.
//	error - Non-nil for unsupported extensions, unreadable files, or
//	        files without a header row.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: opening %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadXLSX(f)
	case ".csv":
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("spreadsheet: unsupported extension: %s", filepath.Ext(path))
	}
}

// LoadXLSX reads the first sheet of an xlsx workbook.
//
// Description:
//
//	The first row is the header; ragged rows are padded to the header
//	width and over-wide rows are truncated, so every returned row lines
//	up with Columns.
func LoadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet: workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: reading sheet %s: %w", sheet, err)
	}
	table, err := tableFromRows(rows)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded xlsx sheet",
		slog.String("sheet", sheet),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", table.Len()))
	return table, nil
}

// LoadCSV reads a comma-separated file with a header row.
func LoadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: reading csv: %w", err)
	}
	table, err := tableFromRows(rows)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded csv",
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", table.Len()))
	return table, nil
}

func tableFromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("spreadsheet: no header row")
	}
	columns := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		columns[i] = strings.TrimSpace(c)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		normalized := make([]string, len(columns))
		for i := range columns {
			if i < len(row) {
				normalized[i] = row[i]
			}
		}
		data = append(data, normalized)
	}
	return &Table{Columns: columns, Rows: data}, nil
}
