// Copyright (c) 2025 Justin Cranford

package crypto

import "golang.org/x/text/cases"

var foldCaser = cases.Fold()

// FoldUsername normalizes a username for case-insensitive comparison and
// lookup, per spec.md §3/§4.4. Unicode-aware (not bare ASCII lowercasing).
func FoldUsername(username string) string {
	return foldCaser.String(username)
}
