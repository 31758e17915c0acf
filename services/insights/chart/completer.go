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
	"context"
	"strings"
)

// Completer is the external text-completion capability.
//
// Description:
//
//	The capability contract is deliberately minimal: given a prompt
//	string, return a string. No streaming, and no structured-output
//	guarantee — all structure recovery (fence stripping, JSON repair,
//	enum validation) is this package's responsibility. Implementations
//	live in services/insights/completion.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// stripCodeFences removes surrounding markdown code-fence decoration from
// a completion response and slices out the first top-level JSON value.
//
// Small models wrap JSON in ```json fences, prepend prose, or both; this
// keeps only the region between the first opening brace/bracket and its
// matching last closer.
func stripCodeFences(response string) string {
	s := strings.TrimSpace(response)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s
	}
	return s[start : end+1]
}
