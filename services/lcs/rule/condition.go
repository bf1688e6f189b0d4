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
	"math/rand/v2"
)

// =============================================================================
// Attribute Schema
// =============================================================================

// Attribute describes one input feature.
type Attribute struct {
	// Name is the column name, informational only.
	Name string `json:"name"`

	// Continuous selects interval conditions. Discrete attributes use an
	// exact value instead.
	Continuous bool `json:"continuous"`

	// Min and Max are the global bounds observed in the training data.
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Range returns Max - Min.
func (a Attribute) Range() float64 {
	return a.Max - a.Min
}

// Clamp limits x to [Min, Max].
func (a Attribute) Clamp(x float64) float64 {
	return max(a.Min, min(a.Max, x))
}

// Schema is the ordered list of input attributes.
type Schema struct {
	Attributes []Attribute `json:"attributes"`
}

// Len returns the number of attributes.
func (s Schema) Len() int {
	return len(s.Attributes)
}

// =============================================================================
// Condition
// =============================================================================

// Condition constrains a single attribute.
//
// Continuous attributes use the closed interval [Lo, Hi]. Discrete
// attributes use Value and ignore Lo/Hi.
type Condition struct {
	Discrete bool    `json:"discrete,omitempty"`
	Lo       float64 `json:"lo,omitempty"`
	Hi       float64 `json:"hi,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// Interval builds a continuous condition, ordering the bounds.
func Interval(lo, hi float64) Condition {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Condition{Lo: lo, Hi: hi}
}

// Exact builds a discrete condition.
func Exact(v float64) Condition {
	return Condition{Discrete: true, Value: v}
}

// Contains reports whether x satisfies the condition. Interval bounds are
// inclusive.
func (c Condition) Contains(x float64) bool {
	if c.Discrete {
		return x == c.Value
	}
	return c.Lo <= x && x <= c.Hi
}

// Center returns the interval midpoint, or Value for discrete conditions.
func (c Condition) Center() float64 {
	if c.Discrete {
		return c.Value
	}
	return (c.Lo + c.Hi) / 2
}

// Equal reports whether two conditions constrain identically.
func (c Condition) Equal(other Condition) bool {
	if c.Discrete != other.Discrete {
		return false
	}
	if c.Discrete {
		return c.Value == other.Value
	}
	return c.Lo == other.Lo && c.Hi == other.Hi
}

// Covers reports whether every value accepted by other is also accepted by c.
func (c Condition) Covers(other Condition) bool {
	if c.Discrete || other.Discrete {
		return c.Equal(other)
	}
	return c.Lo <= other.Lo && other.Hi <= c.Hi
}

// sorted returns the condition with Lo <= Hi.
func (c Condition) sorted() Condition {
	if !c.Discrete && c.Lo > c.Hi {
		c.Lo, c.Hi = c.Hi, c.Lo
	}
	return c
}

// BuildMatch anchors a new condition at the value x.
//
// Description:
//
//	Continuous attributes get an interval centred on x whose radius is a
//	uniform 25-75% of half the attribute range, clamped to the attribute
//	bounds. Discrete attributes get the exact value x.
//
// Inputs:
//   - x: The observed attribute value.
//   - attr: The attribute description.
//   - rng: Random source. Must not be nil.
//
// Outputs:
//   - Condition: A condition that contains x.
func BuildMatch(x float64, attr Attribute, rng *rand.Rand) Condition {
	if !attr.Continuous {
		return Exact(x)
	}
	adj := float64(25+rng.IntN(51)) / 100
	radius := attr.Range() * adj / 2
	lo := attr.Clamp(x - radius)
	hi := attr.Clamp(x + radius)
	// Values outside the observed bounds still have to match.
	return Interval(min(lo, x), max(hi, x))
}
