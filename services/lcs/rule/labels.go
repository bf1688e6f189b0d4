// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rule

import (
	"slices"
	"strconv"
	"strings"
)

// LabelSet is a set of label identifiers kept sorted and free of duplicates.
//
// The zero value is an empty set. LabelSet values are treated as immutable:
// every operation returns a new slice.
type LabelSet []int

// NewLabelSet builds a LabelSet from arbitrary label identifiers.
//
// Inputs:
//   - labels: Label identifiers in any order, duplicates allowed.
//
// Outputs:
//   - LabelSet: Sorted, de-duplicated set.
func NewLabelSet(labels ...int) LabelSet {
	out := slices.Clone(labels)
	slices.Sort(out)
	return LabelSet(slices.Compact(out))
}

// Len returns the number of labels in the set.
func (s LabelSet) Len() int { return len(s) }

// Contains reports whether label is a member of s.
func (s LabelSet) Contains(label int) bool {
	_, found := slices.BinarySearch(s, label)
	return found
}

// IsSubsetOf reports whether every label of s is also in other.
// The empty set is a subset of every set.
func (s LabelSet) IsSubsetOf(other LabelSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			i++
			j++
		case s[i] > other[j]:
			j++
		default:
			return false
		}
	}
	return i == len(s)
}

// Equal reports whether s and other hold the same labels.
func (s LabelSet) Equal(other LabelSet) bool {
	return slices.Equal(s, other)
}

// Union returns the labels present in either s or other.
func (s LabelSet) Union(other LabelSet) LabelSet {
	out := make(LabelSet, 0, len(s)+len(other))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			out = append(out, s[i])
			i++
			j++
		case s[i] < other[j]:
			out = append(out, s[i])
			i++
		default:
			out = append(out, other[j])
			j++
		}
	}
	out = append(out, s[i:]...)
	return append(out, other[j:]...)
}

// Intersect returns the labels present in both s and other.
func (s LabelSet) Intersect(other LabelSet) LabelSet {
	out := make(LabelSet, 0, min(len(s), len(other)))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			out = append(out, s[i])
			i++
			j++
		case s[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// HammingLoss returns |s Δ other| / |s ∪ other|, or 0 when both are empty.
func (s LabelSet) HammingLoss(other LabelSet) float64 {
	union := s.Union(other)
	if len(union) == 0 {
		return 0
	}
	common := len(s.Intersect(other))
	return float64(len(union)-common) / float64(len(union))
}

// Clone returns an independent copy of s.
func (s LabelSet) Clone() LabelSet {
	return slices.Clone(s)
}

// String renders the set as "{1,3,7}".
func (s LabelSet) String() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = strconv.Itoa(l)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// UnionAll returns the union of every set in sets.
func UnionAll(sets ...LabelSet) LabelSet {
	var out LabelSet
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}
