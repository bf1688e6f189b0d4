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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianLCS/pkg/logging"
	"github.com/AleutianAI/AleutianLCS/services/lcs/classifierset"
	"github.com/AleutianAI/AleutianLCS/services/lcs/config"
	"github.com/AleutianAI/AleutianLCS/services/lcs/dataset"
	"github.com/AleutianAI/AleutianLCS/services/lcs/partition"
	lcsbadger "github.com/AleutianAI/AleutianLCS/services/lcs/storage/badger"
	"github.com/AleutianAI/AleutianLCS/services/lcs/trainer"
)

// seedMix decorrelates the two PCG words derived from one seed.
const seedMix = 0x9e3779b97f4a7c15

type trainFlags struct {
	configPath  string
	dataPath    string
	labels      int
	iterations  int
	seed        uint64
	dbPath      string
	runID       string
	metricsAddr string
	logLevel    string
	traceStdout bool
}

func newTrainCmd() *cobra.Command {
	var f trainFlags
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a rule population on a CSV dataset",
		Long: `Train reads a CSV of attribute columns followed by label indicator
columns, evolves a rule population and optionally snapshots it to BadgerDB.
An existing snapshot with the same run ID is resumed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			_, err = runTrain(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML or JSON config file")
	flags.StringVar(&f.dataPath, "data", "", "training CSV")
	flags.IntVar(&f.labels, "labels", 0, "number of trailing label columns")
	flags.IntVar(&f.iterations, "iterations", 0, "training iterations")
	flags.Uint64Var(&f.seed, "seed", 0, "random seed")
	flags.StringVar(&f.dbPath, "db", "", "BadgerDB directory for population snapshots")
	flags.StringVar(&f.runID, "run-id", "", "snapshot run ID (generated when empty)")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	flags.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&f.traceStdout, "trace-stdout", false, "export trace spans to stdout")
	return cmd
}

// resolve loads the config file and applies explicitly set flags on top.
func (f *trainFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	if changed("data") {
		cfg.Data.Path = f.dataPath
	}
	if changed("labels") {
		cfg.Data.LabelColumns = f.labels
	}
	if changed("iterations") {
		cfg.Training.Iterations = f.iterations
	}
	if changed("seed") {
		cfg.Training.Seed = f.seed
	}
	if changed("db") {
		cfg.Storage.Path = f.dbPath
	}
	if changed("run-id") {
		cfg.Storage.RunID = f.runID
	}
	if changed("metrics-addr") {
		cfg.Observability.MetricsAddr = f.metricsAddr
	}
	if changed("log-level") {
		cfg.Observability.LogLevel = f.logLevel
	}
	if f.traceStdout {
		cfg.Observability.TraceExporter = "stdout"
		cfg.Observability.TracingEnabled = true
	}
	if cfg.Data.Path == "" {
		return cfg, errors.New("--data is required")
	}
	if cfg.Data.LabelColumns <= 0 {
		return cfg, errors.New("--labels must be positive")
	}
	return cfg, cfg.Validate()
}

// trainResult is what a finished training run reports.
type trainResult struct {
	RunID   string
	Summary trainer.Summary
}

func runTrain(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) (trainResult, error) {
	res := trainResult{RunID: cfg.Storage.RunID}
	level, err := logging.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		return res, err
	}
	log := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Observability.LogDir,
		Service: "lcs",
		JSON:    logging.AutoJSON(stderr),
		Output:  stderr,
	})
	defer log.Close()
	logger := log.Slog()

	ds, err := loadDataset(cfg.Data)
	if err != nil {
		return res, err
	}
	logger.Info("dataset loaded",
		slog.String("path", cfg.Data.Path),
		slog.Int("examples", ds.Len()),
		slog.Int("attributes", ds.Schema.Len()),
		slog.Int("labels", ds.NumLabels),
	)

	shutdown, err := initTracing(ctx, cfg.Observability.TraceExporter, cfg.Observability.OTLPEndpoint, stdout)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	csCfg, err := cfg.ClassifierSet()
	if err != nil {
		return res, err
	}
	opts, err := buildOptions(ctx, cfg, csCfg, ds)
	if err != nil {
		return res, err
	}
	opts = append(opts, classifierset.WithLogger(logger))

	var store *lcsbadger.PopulationStore
	trainOpts := cfg.TrainerOptions()
	if cfg.Storage.Path != "" {
		dbCfg := lcsbadger.DefaultConfig()
		dbCfg.Path = cfg.Storage.Path
		db, err := lcsbadger.OpenDB(dbCfg)
		if err != nil {
			return res, err
		}
		defer db.Close()
		store = lcsbadger.NewPopulationStore(db)

		if res.RunID == "" {
			res.RunID = uuid.NewString()
		}
		snap, err := store.Load(ctx, res.RunID)
		switch {
		case errors.Is(err, lcsbadger.ErrRunNotFound):
		case err != nil:
			return res, err
		default:
			if snap.Meta.Schema.Len() != ds.Schema.Len() {
				return res, fmt.Errorf("run %s has %d attributes, dataset has %d", res.RunID, snap.Meta.Schema.Len(), ds.Schema.Len())
			}
			opts = append(opts, classifierset.WithPopulation(snap.Rules))
			trainOpts.StartIteration = snap.Meta.Iteration
			logger.Info("resuming run",
				slog.String("run_id", res.RunID),
				slog.Int("iteration", snap.Meta.Iteration),
				slog.Int("macro", snap.Meta.MacroSize),
			)
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Training.Seed, cfg.Training.Seed^seedMix))
	set, err := classifierset.New(csCfg, ds.Schema, rng, opts...)
	if err != nil {
		return res, err
	}
	tracer := trainer.NewTracer(logger, cfg.Observability.TracingEnabled || cfg.Observability.TraceExporter != "")
	tr := trainer.New(set, ds.Examples, trainOpts, logger, tracer)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		g.Go(func() error { return serveMetrics(runCtx, addr, logger) })
	}
	g.Go(func() error {
		defer stop()
		summary, err := tr.Run(runCtx, cfg.Training.Iterations)
		res.Summary = summary
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	if store != nil {
		meta := lcsbadger.RunMeta{
			Iteration: tr.Iteration(),
			NumLabels: ds.NumLabels,
			Schema:    ds.Schema,
		}
		if err := store.Save(ctx, res.RunID, meta, set.Rules()); err != nil {
			return res, fmt.Errorf("save snapshot: %w", err)
		}
		logger.Info("snapshot saved", slog.String("run_id", res.RunID), slog.String("db", cfg.Storage.Path))
	}

	s := res.Summary
	fmt.Fprintf(stdout, "iterations=%d macro=%d micro=%d fitness=%.4f generality=%.4f\n",
		s.Iterations, s.MacroSize, s.MicroSize, s.Averages.Fitness, s.Averages.Generality)
	if res.RunID != "" {
		fmt.Fprintf(stdout, "run_id=%s\n", res.RunID)
	}
	return res, nil
}

func loadDataset(cfg config.DataConfig) (*dataset.Dataset, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	ds, err := dataset.LoadCSV(f, dataset.Options{
		LabelColumns:    cfg.LabelColumns,
		DiscreteColumns: cfg.DiscreteColumns,
		Header:          cfg.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", cfg.Path, err)
	}
	return ds, nil
}

// buildOptions derives the dataset statistics the classifier set needs,
// computing the similarity matrix and the covariance concurrently. The
// covariance is skipped only when the metric is explicitly euclidean.
func buildOptions(ctx context.Context, cfg config.Config, csCfg classifierset.Config, ds *dataset.Dataset) ([]classifierset.Option, error) {
	var (
		sim *mat.Dense
		cov *mat.SymDense
	)
	g, _ := errgroup.WithContext(ctx)
	if csCfg.SimilarityMode == partition.SimilarityGlobal {
		g.Go(func() error {
			sim = ds.LabelSimilarityMatrix()
			return nil
		})
	}
	if cfg.Population.Metric == "mahalanobis" {
		g.Go(func() error {
			var err error
			cov, err = ds.Covariance(cfg.Population.CovarianceRidge)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var opts []classifierset.Option
	if sim != nil {
		opts = append(opts, classifierset.WithSimilarityMatrix(sim))
	}
	if cov != nil {
		opts = append(opts, classifierset.WithCovariance(cov))
	} else {
		opts = append(opts, classifierset.WithMetric(classifierset.NewEuclideanMetric()))
	}
	if cfg.Partition.Vote == "frequency" {
		opts = append(opts, classifierset.WithVote(ds.LabelFrequency()))
	}
	return opts, nil
}
