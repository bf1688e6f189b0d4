// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads LCS training configuration from YAML or JSON files
// and LCS_* environment variables.
//
// Priority: environment > file > defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianLCS/services/lcs/classifierset"
	"github.com/AleutianAI/AleutianLCS/services/lcs/partition"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
	"github.com/AleutianAI/AleutianLCS/services/lcs/trainer"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete configuration of a training run.
type Config struct {
	Population    PopulationConfig    `json:"population" yaml:"population"`
	Genetic       GeneticConfig       `json:"genetic" yaml:"genetic"`
	Rule          rule.Params         `json:"rule" yaml:"rule"`
	Partition     PartitionConfig     `json:"partition" yaml:"partition"`
	Data          DataConfig          `json:"data" yaml:"data"`
	Training      TrainingConfig      `json:"training" yaml:"training"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
}

// PopulationConfig configures the rule population.
type PopulationConfig struct {
	MaxPopulation int  `json:"max_population" yaml:"max_population" validate:"gt=0"`
	MatchSetCap   int  `json:"match_set_cap" yaml:"match_set_cap" validate:"gt=0"`
	Subsumption   bool `json:"subsumption" yaml:"subsumption"`

	// Metric ranks matched rules when the match set is capped.
	Metric string `json:"metric" yaml:"metric" validate:"oneof=euclidean mahalanobis"`

	// CovarianceRidge is added to the covariance diagonal for mahalanobis.
	CovarianceRidge float64 `json:"covariance_ridge" yaml:"covariance_ridge" validate:"gte=0"`
}

// GeneticConfig configures the genetic algorithm.
type GeneticConfig struct {
	CrossoverProb    float64 `json:"crossover_prob" yaml:"crossover_prob" validate:"gte=0,lte=1"`
	MutationProb     float64 `json:"mutation_prob" yaml:"mutation_prob" validate:"gte=0,lte=1"`
	DontCareProb     float64 `json:"dont_care_prob" yaml:"dont_care_prob" validate:"gte=0,lte=1"`
	FitnessReduction float64 `json:"fitness_reduction" yaml:"fitness_reduction" validate:"gte=0,lte=1"`
	Selection        string  `json:"selection" yaml:"selection" validate:"required"`
	TournamentSize   int     `json:"tournament_size" yaml:"tournament_size" validate:"gte=1"`
	ThetaGA          int     `json:"theta_ga" yaml:"theta_ga" validate:"gte=0"`
}

// PartitionConfig configures label-space partitioning.
type PartitionConfig struct {
	Similarity string `json:"similarity" yaml:"similarity" validate:"required"`
	Clustering string `json:"clustering" yaml:"clustering"`

	partition.Options `yaml:",inline"`

	// Vote names the source of the per-label vote vector. "frequency" uses
	// the training label frequencies; empty means no vote vector.
	Vote string `json:"vote" yaml:"vote" validate:"omitempty,oneof=frequency"`
}

// DataConfig describes the training CSV.
type DataConfig struct {
	Path            string `json:"path" yaml:"path"`
	LabelColumns    int    `json:"label_columns" yaml:"label_columns" validate:"gte=0"`
	DiscreteColumns []int  `json:"discrete_columns" yaml:"discrete_columns" validate:"dive,gte=0"`
	Header          bool   `json:"header" yaml:"header"`
}

// TrainingConfig configures the training loop.
type TrainingConfig struct {
	Iterations int    `json:"iterations" yaml:"iterations" validate:"gt=0"`
	Seed       uint64 `json:"seed" yaml:"seed"`
	TrackFreq  int    `json:"track_freq" yaml:"track_freq" validate:"gte=0"`
	Compact    bool   `json:"compact" yaml:"compact"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	LogLevel       string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogDir         string `json:"log_dir" yaml:"log_dir"`
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsAddr    string `json:"metrics_addr" yaml:"metrics_addr" validate:"omitempty,hostname_port"`

	// TraceExporter installs an SDK tracer provider: "stdout" or "otlp".
	// Empty keeps the global (no-op) provider.
	TraceExporter string `json:"trace_exporter" yaml:"trace_exporter" validate:"omitempty,oneof=stdout otlp"`
	OTLPEndpoint  string `json:"otlp_endpoint" yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// StorageConfig configures population snapshots.
type StorageConfig struct {
	// Path is the badger directory; empty disables snapshots.
	Path  string `json:"path" yaml:"path"`
	RunID string `json:"run_id" yaml:"run_id"`
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the default configuration.
func Default() Config {
	cs := classifierset.DefaultConfig()
	opts := cs.Partition
	return Config{
		Population: PopulationConfig{
			MaxPopulation:   cs.MaxPopulation,
			MatchSetCap:     cs.MatchSetCap,
			Subsumption:     cs.Subsumption,
			Metric:          "mahalanobis",
			CovarianceRidge: 1e-6,
		},
		Genetic: GeneticConfig{
			CrossoverProb:    cs.CrossoverProb,
			MutationProb:     cs.MutationProb,
			DontCareProb:     cs.DontCareProb,
			FitnessReduction: cs.FitnessReduction,
			Selection:        cs.Selection.String(),
			TournamentSize:   cs.TournamentSize,
			ThetaGA:          cs.ThetaGA,
		},
		Rule: cs.Rule,
		Partition: PartitionConfig{
			Similarity: cs.SimilarityMode.String(),
			Clustering: cs.Clustering.String(),
			Options:    opts,
		},
		Data: DataConfig{
			Header: true,
		},
		Training: TrainingConfig{
			Iterations: 10000,
			Seed:       1,
			TrackFreq:  trainer.DefaultTrackFreq,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration with priority environment > file > defaults.
//
// Inputs:
//   - path: YAML or JSON file; empty or missing uses defaults.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: File read/parse errors or ErrInvalidConfig.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("load config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// envVar binds one LCS_* variable to a field setter.
type envVar struct {
	name string
	set  func(string) error
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err == nil {
			*dst = i
		}
		return err
	}
}

func floatVar(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}
		return err
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func loadEnv(cfg *Config) error {
	vars := []envVar{
		{"LCS_MAX_POPULATION", intVar(&cfg.Population.MaxPopulation)},
		{"LCS_MATCH_SET_CAP", intVar(&cfg.Population.MatchSetCap)},
		{"LCS_SUBSUMPTION", boolVar(&cfg.Population.Subsumption)},
		{"LCS_METRIC", stringVar(&cfg.Population.Metric)},
		{"LCS_CROSSOVER_PROB", floatVar(&cfg.Genetic.CrossoverProb)},
		{"LCS_MUTATION_PROB", floatVar(&cfg.Genetic.MutationProb)},
		{"LCS_DONT_CARE_PROB", floatVar(&cfg.Genetic.DontCareProb)},
		{"LCS_FITNESS_REDUCTION", floatVar(&cfg.Genetic.FitnessReduction)},
		{"LCS_SELECTION", stringVar(&cfg.Genetic.Selection)},
		{"LCS_TOURNAMENT_SIZE", intVar(&cfg.Genetic.TournamentSize)},
		{"LCS_THETA_GA", intVar(&cfg.Genetic.ThetaGA)},
		{"LCS_SIMILARITY", stringVar(&cfg.Partition.Similarity)},
		{"LCS_CLUSTERING", stringVar(&cfg.Partition.Clustering)},
		{"LCS_SIM_DELTA", floatVar(&cfg.Partition.SimDelta)},
		{"LCS_VOTE", stringVar(&cfg.Partition.Vote)},
		{"LCS_ITERATIONS", intVar(&cfg.Training.Iterations)},
		{"LCS_TRACK_FREQ", intVar(&cfg.Training.TrackFreq)},
		{"LCS_LOG_LEVEL", stringVar(&cfg.Observability.LogLevel)},
		{"LCS_LOG_DIR", stringVar(&cfg.Observability.LogDir)},
		{"LCS_TRACING_ENABLED", boolVar(&cfg.Observability.TracingEnabled)},
		{"LCS_METRICS_ADDR", stringVar(&cfg.Observability.MetricsAddr)},
		{"LCS_TRACE_EXPORTER", stringVar(&cfg.Observability.TraceExporter)},
		{"LCS_OTLP_ENDPOINT", stringVar(&cfg.Observability.OTLPEndpoint)},
		{"LCS_DB_PATH", stringVar(&cfg.Storage.Path)},
		{"LCS_RUN_ID", stringVar(&cfg.Storage.RunID)},
		{"LCS_SEED", func(v string) error {
			s, err := strconv.ParseUint(v, 10, 64)
			if err == nil {
				cfg.Training.Seed = s
			}
			return err
		}},
	}
	for _, ev := range vars {
		v, ok := os.LookupEnv(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s=%q: %w", ev.name, v, err)
		}
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := classifierset.ParseSelectionMethod(c.Genetic.Selection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := partition.ParseSimilarityMode(c.Partition.Similarity); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	mode, err := partition.ParseClusteringMode(c.Partition.Clustering)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if mode.RequiresVote() && c.Partition.Vote == "" {
		return fmt.Errorf("%w: clustering %q needs partition.vote: %w", ErrInvalidConfig, c.Partition.Clustering, partition.ErrVoteVectorRequired)
	}
	return nil
}

// ClassifierSet converts the configuration into a classifierset.Config.
// Call Validate first; unparseable names return an error.
func (c Config) ClassifierSet() (classifierset.Config, error) {
	selection, err := classifierset.ParseSelectionMethod(c.Genetic.Selection)
	if err != nil {
		return classifierset.Config{}, err
	}
	similarity, err := partition.ParseSimilarityMode(c.Partition.Similarity)
	if err != nil {
		return classifierset.Config{}, err
	}
	clustering, err := partition.ParseClusteringMode(c.Partition.Clustering)
	if err != nil {
		return classifierset.Config{}, err
	}
	return classifierset.Config{
		MaxPopulation:    c.Population.MaxPopulation,
		MatchSetCap:      c.Population.MatchSetCap,
		CrossoverProb:    c.Genetic.CrossoverProb,
		MutationProb:     c.Genetic.MutationProb,
		DontCareProb:     c.Genetic.DontCareProb,
		FitnessReduction: c.Genetic.FitnessReduction,
		Selection:        selection,
		TournamentSize:   c.Genetic.TournamentSize,
		Subsumption:      c.Population.Subsumption,
		ThetaGA:          c.Genetic.ThetaGA,
		SimilarityMode:   similarity,
		Clustering:       clustering,
		Partition:        c.Partition.Options,
		Rule:             c.Rule,
	}, nil
}

// TrainerOptions converts the training section into trainer.Options.
func (c Config) TrainerOptions() trainer.Options {
	return trainer.Options{
		TrackFreq: c.Training.TrackFreq,
		Compact:   c.Training.Compact,
	}
}
