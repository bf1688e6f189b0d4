// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRules() []*rule.Rule {
	return []*rule.Rule{
		{
			ID:            "r-2",
			SpecifiedAtts: []int{0},
			Condition:     []rule.Condition{rule.Interval(1, 3)},
			Prediction:    rule.NewLabelSet(0, 2),
			Numerosity:    3,
			Fitness:       0.5,
			MatchCount:    12,
			LabelProb:     map[int]float64{0: 0.75, 2: 0.25},
		},
		{
			ID:            "r-1",
			SpecifiedAtts: []int{1},
			Condition:     []rule.Condition{rule.Exact(4)},
			Prediction:    rule.NewLabelSet(1),
			Numerosity:    1,
		},
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpenDB_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 10 * time.Millisecond

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	assert.False(t, db.InMemory())
	require.NoError(t, db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, db.Close())

	db, err = OpenDB(cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("v"), val)
			return nil
		})
	}))
}

func TestWithTxn_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, db.WithTxn(cancelled, func(*badger.Txn) error { return nil }), context.Canceled)
	assert.ErrorIs(t, db.WithReadTxn(cancelled, func(*badger.Txn) error { return nil }), context.Canceled)
}

// =============================================================================
// PopulationStore Tests
// =============================================================================

func TestPopulationStore_SaveLoad(t *testing.T) {
	store := NewPopulationStore(openTestDB(t))
	ctx := context.Background()
	schema := rule.Schema{Attributes: []rule.Attribute{
		{Name: "x", Continuous: true, Min: 0, Max: 10},
		{Name: "kind", Min: 0, Max: 5},
	}}

	require.NoError(t, store.Save(ctx, "run-a", RunMeta{Iteration: 500, NumLabels: 3, Schema: schema}, sampleRules()))

	snap, err := store.Load(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "run-a", snap.Meta.RunID)
	assert.Equal(t, 500, snap.Meta.Iteration)
	assert.Equal(t, 2, snap.Meta.MacroSize)
	assert.Equal(t, 4, snap.Meta.MicroSize)
	assert.Equal(t, schema, snap.Meta.Schema)
	assert.False(t, snap.Meta.SavedAt.IsZero())

	require.Len(t, snap.Rules, 2)
	assert.Equal(t, sampleRules(), snap.Rules, "rules round-trip in population order")
}

func TestPopulationStore_SaveReplaces(t *testing.T) {
	store := NewPopulationStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run", RunMeta{}, sampleRules()))
	require.NoError(t, store.Save(ctx, "run", RunMeta{Iteration: 9}, sampleRules()[1:]))

	snap, err := store.Load(ctx, "run")
	require.NoError(t, err)
	require.Len(t, snap.Rules, 1)
	assert.Equal(t, "r-1", snap.Rules[0].ID)
	assert.Equal(t, 1, snap.Meta.MicroSize)
}

func TestPopulationStore_RunsAndDelete(t *testing.T) {
	store := NewPopulationStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "b", RunMeta{}, sampleRules()))
	require.NoError(t, store.Save(ctx, "a", RunMeta{}, nil))
	require.NoError(t, store.Save(ctx, "ab", RunMeta{}, sampleRules()[:1]))

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "a", runs[0].RunID)
	assert.Equal(t, "ab", runs[1].RunID)
	assert.Equal(t, "b", runs[2].RunID)

	snap, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, snap.Rules, "run a does not see the rules of run ab")

	require.NoError(t, store.Delete(ctx, "b"))
	require.NoError(t, store.Delete(ctx, "missing"))
	_, err = store.Load(ctx, "b")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err = store.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPopulationStore_InvalidRunID(t *testing.T) {
	store := NewPopulationStore(openTestDB(t))
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, "", RunMeta{}, nil), ErrInvalidRunID)
	_, err := store.Load(ctx, "a/b")
	assert.ErrorIs(t, err, ErrInvalidRunID)
	assert.ErrorIs(t, store.Delete(ctx, "x/"), ErrInvalidRunID)
}
