// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset loads multi-label training data and derives the
// statistics the classifier set consumes: the attribute schema, the label
// similarity matrix, the attribute covariance and label frequencies.
//
// Rows are CSV records of attribute values followed by LabelColumns 0/1
// label indicators.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/classifierset"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

var (
	// ErrNoLabelColumns is returned when Options.LabelColumns is not
	// positive.
	ErrNoLabelColumns = errors.New("at least one label column required")

	// ErrNoAttributes is returned when rows carry no attribute columns.
	ErrNoAttributes = errors.New("rows have no attribute columns")

	// ErrEmptyDataset is returned when no rows were read.
	ErrEmptyDataset = errors.New("dataset has no rows")

	// ErrTooFewRows is returned when covariance needs more rows.
	ErrTooFewRows = errors.New("covariance needs at least two rows")
)

// Options configures LoadCSV.
type Options struct {
	// LabelColumns is the number of trailing label indicator columns.
	LabelColumns int

	// DiscreteColumns lists attribute indices treated as discrete.
	DiscreteColumns []int

	// Header skips the first record and names the attributes after it.
	Header bool
}

// Dataset is a loaded training set.
type Dataset struct {
	Examples  []classifierset.Example
	Schema    rule.Schema
	NumLabels int
}

// LoadCSV reads a dataset.
//
// Inputs:
//   - r: CSV source.
//   - opts: Column layout.
//
// Outputs:
//   - *Dataset: Examples with the inferred schema.
//   - error: ErrNoLabelColumns, ErrNoAttributes, ErrEmptyDataset, or a
//     parse error naming the line.
func LoadCSV(r io.Reader, opts Options) (*Dataset, error) {
	if opts.LabelColumns <= 0 {
		return nil, ErrNoLabelColumns
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var names []string
	var examples []classifierset.Example
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line++
		if opts.Header && line == 1 {
			names = record
			continue
		}

		nAtts := len(record) - opts.LabelColumns
		if nAtts <= 0 {
			return nil, fmt.Errorf("line %d: %w", line, ErrNoAttributes)
		}
		if len(examples) > 0 && nAtts != len(examples[0].State) {
			return nil, fmt.Errorf("line %d: expected %d attributes, got %d", line, len(examples[0].State), nAtts)
		}

		ex := classifierset.Example{State: make([]float64, nAtts)}
		for i := range nAtts {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			ex.State[i] = v
		}
		var labels []int
		for j := range opts.LabelColumns {
			cell := strings.TrimSpace(record[nAtts+j])
			if cell != "" && cell != "0" {
				labels = append(labels, j)
			}
		}
		ex.Labels = rule.NewLabelSet(labels...)
		examples = append(examples, ex)
	}
	if len(examples) == 0 {
		return nil, ErrEmptyDataset
	}

	return &Dataset{
		Examples:  examples,
		Schema:    InferSchema(examples, names, opts.DiscreteColumns),
		NumLabels: opts.LabelColumns,
	}, nil
}

// InferSchema derives attribute bounds from examples. names may be shorter
// than the attribute count; missing names default to "a<i>".
func InferSchema(examples []classifierset.Example, names []string, discrete []int) rule.Schema {
	if len(examples) == 0 {
		return rule.Schema{}
	}
	n := len(examples[0].State)
	attrs := make([]rule.Attribute, n)
	for i := range attrs {
		name := fmt.Sprintf("a%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		attrs[i] = rule.Attribute{
			Name:       name,
			Continuous: !slices.Contains(discrete, i),
			Min:        math.Inf(1),
			Max:        math.Inf(-1),
		}
	}
	for _, ex := range examples {
		for i, v := range ex.State {
			attrs[i].Min = min(attrs[i].Min, v)
			attrs[i].Max = max(attrs[i].Max, v)
		}
	}
	return rule.Schema{Attributes: attrs}
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.Examples)
}

// labelMatrix returns the rows x labels indicator matrix.
func (d *Dataset) labelMatrix() *mat.Dense {
	y := mat.NewDense(len(d.Examples), d.NumLabels, nil)
	for i, ex := range d.Examples {
		for _, l := range ex.Labels {
			if l < d.NumLabels {
				y.Set(i, l, 1)
			}
		}
	}
	return y
}

// LabelSimilarityMatrix returns the cosine similarity of the label
// indicator columns. Labels that never occur are unrelated to every label,
// themselves included.
func (d *Dataset) LabelSimilarityMatrix() *mat.Dense {
	y := d.labelMatrix()
	var gram mat.Dense
	gram.Mul(y.T(), y)

	l := d.NumLabels
	sim := mat.NewDense(l, l, nil)
	for a := range l {
		for b := range l {
			den := math.Sqrt(gram.At(a, a) * gram.At(b, b))
			if den > 0 {
				sim.Set(a, b, gram.At(a, b)/den)
			}
		}
	}
	return sim
}

// Covariance returns the attribute covariance with ridge added to the
// diagonal, keeping constant attributes positive definite.
func (d *Dataset) Covariance(ridge float64) (*mat.SymDense, error) {
	if len(d.Examples) < 2 {
		return nil, ErrTooFewRows
	}
	n := d.Schema.Len()
	x := mat.NewDense(len(d.Examples), n, nil)
	for i, ex := range d.Examples {
		x.SetRow(i, ex.State)
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, x, nil)
	for i := range n {
		cov.SetSym(i, i, cov.At(i, i)+ridge)
	}
	return cov, nil
}

// LabelFrequency returns the fraction of examples carrying each label.
func (d *Dataset) LabelFrequency() []float64 {
	freq := make([]float64, d.NumLabels)
	if len(d.Examples) == 0 {
		return freq
	}
	for _, ex := range d.Examples {
		for _, l := range ex.Labels {
			if l < d.NumLabels {
				freq[l]++
			}
		}
	}
	for i := range freq {
		freq[i] /= float64(len(d.Examples))
	}
	return freq
}
