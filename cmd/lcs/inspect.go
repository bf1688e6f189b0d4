// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianLCS/services/lcs/config"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
	lcsbadger "github.com/AleutianAI/AleutianLCS/services/lcs/storage/badger"
)

func newInspectCmd() *cobra.Command {
	var (
		dbPath string
		runID  string
		top    int
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List saved runs or show the fittest rules of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			cfg := lcsbadger.DefaultConfig()
			cfg.Path = dbPath
			cfg.GCInterval = 0
			db, err := lcsbadger.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			store := lcsbadger.NewPopulationStore(db)

			if runID == "" {
				return listRuns(cmd.Context(), store, cmd.OutOrStdout())
			}
			return showRun(cmd.Context(), store, runID, top, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "BadgerDB directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "run to show (lists runs when empty)")
	cmd.Flags().IntVar(&top, "top", 20, "number of rules to show")
	return cmd
}

func listRuns(ctx context.Context, store *lcsbadger.PopulationStore, out io.Writer) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs")
		return nil
	}
	t := newTable("RUN", "ITERATION", "MACRO", "MICRO", "LABELS", "SAVED")
	for _, r := range runs {
		t.Row(r.RunID, strconv.Itoa(r.Iteration), strconv.Itoa(r.MacroSize),
			strconv.Itoa(r.MicroSize), strconv.Itoa(r.NumLabels), r.SavedAt.Format(time.RFC3339))
	}
	_, err = fmt.Fprintln(out, t.Render())
	return err
}

func showRun(ctx context.Context, store *lcsbadger.PopulationStore, runID string, top int, out io.Writer) error {
	snap, err := store.Load(ctx, runID)
	if err != nil {
		return err
	}
	m := snap.Meta
	fmt.Fprintf(out, "run %s: iteration %d, %d rules, micro %d\n", m.RunID, m.Iteration, m.MacroSize, m.MicroSize)

	rules := slices.Clone(snap.Rules)
	slices.SortStableFunc(rules, func(a, b *rule.Rule) int {
		return cmp.Compare(b.Fitness, a.Fitness)
	})
	if top > 0 && len(rules) > top {
		rules = rules[:top]
	}

	t := newTable("FITNESS", "NUM", "MATCHED", "PREDICTION", "CONDITION")
	for _, r := range rules {
		t.Row(strconv.FormatFloat(r.Fitness, 'f', 4, 64), strconv.Itoa(r.Numerosity),
			strconv.Itoa(r.MatchCount), r.Prediction.String(), describeCondition(r, m.Schema))
	}
	_, err = fmt.Fprintln(out, t.Render())
	return err
}

// newTable returns an unstyled table so output stays plain when piped.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func describeCondition(r *rule.Rule, schema rule.Schema) string {
	if len(r.SpecifiedAtts) == 0 {
		return "*"
	}
	parts := make([]string, len(r.SpecifiedAtts))
	for i, att := range r.SpecifiedAtts {
		name := fmt.Sprintf("a%d", att)
		if att < schema.Len() {
			name = schema.Attributes[att].Name
		}
		c := r.Condition[i]
		if c.Discrete {
			parts[i] = fmt.Sprintf("%s=%g", name, c.Value)
		} else {
			parts[i] = fmt.Sprintf("%s in [%g, %g]", name, c.Lo, c.Hi)
		}
	}
	return strings.Join(parts, " & ")
}

func newValidateConfigCmd() *cobra.Command {
	var (
		path      string
		printYAML bool
	)
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate a configuration file merged with LCS_* variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if printYAML {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("encode config: %w", err)
				}
				fmt.Fprint(out, string(data))
				return nil
			}
			fmt.Fprintln(out, "configuration valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "YAML or JSON config file")
	cmd.Flags().BoolVar(&printYAML, "print", false, "print the effective configuration as YAML")
	return cmd
}
