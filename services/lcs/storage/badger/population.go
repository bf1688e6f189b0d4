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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

var (
	// ErrRunNotFound is returned when no snapshot exists for a run.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRunID is returned for empty run IDs or IDs containing '/'.
	ErrInvalidRunID = errors.New("invalid run id")
)

const (
	popPrefix  = "pop/"
	metaPrefix = "meta/"
)

// RunMeta describes one population snapshot.
type RunMeta struct {
	RunID     string      `json:"run_id"`
	Iteration int         `json:"iteration"`
	MacroSize int         `json:"macro_size"`
	MicroSize int         `json:"micro_size"`
	NumLabels int         `json:"num_labels"`
	Schema    rule.Schema `json:"schema"`
	SavedAt   time.Time   `json:"saved_at"`
}

// Snapshot is a restored population with its metadata. Rules keep the
// order they were saved in.
type Snapshot struct {
	Meta  RunMeta
	Rules []*rule.Rule
}

// PopulationStore saves and restores rule populations.
//
// Keys:
//
//	pop/<run>/<position>/<rule-id>  one JSON rule per macro-rule
//	meta/<run>                      the RunMeta record
//
// Thread Safety: Safe for concurrent use.
type PopulationStore struct {
	db *DB
}

// NewPopulationStore creates a store on db.
func NewPopulationStore(db *DB) *PopulationStore {
	return &PopulationStore{db: db}
}

func checkRunID(runID string) error {
	if runID == "" || strings.Contains(runID, "/") {
		return fmt.Errorf("%q: %w", runID, ErrInvalidRunID)
	}
	return nil
}

func rulePrefix(runID string) []byte {
	return []byte(popPrefix + runID + "/")
}

func ruleKey(runID string, position int, id string) []byte {
	return fmt.Appendf(nil, "%s%s/%08d/%s", popPrefix, runID, position, id)
}

func metaKey(runID string) []byte {
	return []byte(metaPrefix + runID)
}

// Save replaces the snapshot of runID with rules.
//
// Description:
//
//	Existing rule keys of the run are deleted, rules are written in
//	population order through a write batch and the metadata record is
//	committed last, so a run shows up in Runs only once its rules are
//	written. MacroSize and MicroSize are derived from rules; RunID and
//	SavedAt are set by Save.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - meta: Iteration, label count and schema of the run.
//   - rules: The population.
//
// Outputs:
//   - error: ErrInvalidRunID, encoding or database errors.
func (s *PopulationStore) Save(ctx context.Context, runID string, meta RunMeta, rules []*rule.Rule) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := s.deleteRules(ctx, runID); err != nil {
		return fmt.Errorf("drop previous snapshot: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	micro := 0
	for i, r := range rules {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		if err := wb.Set(ruleKey(runID, i, r.ID), data); err != nil {
			return fmt.Errorf("write rule %s: %w", r.ID, err)
		}
		micro += r.Numerosity
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush rules: %w", err)
	}

	meta.RunID = runID
	meta.MacroSize = len(rules)
	meta.MicroSize = micro
	meta.SavedAt = time.Now().UTC()
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode run meta: %w", err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(metaKey(runID), data)
	})
}

// Load restores the snapshot of runID.
//
// Outputs:
//   - Snapshot: Metadata and rules in saved order.
//   - error: ErrRunNotFound, ErrInvalidRunID, decoding or database errors.
func (s *PopulationStore) Load(ctx context.Context, runID string) (Snapshot, error) {
	var snap Snapshot
	if err := checkRunID(runID); err != nil {
		return snap, err
	}
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap.Meta)
		}); err != nil {
			return fmt.Errorf("decode run meta: %w", err)
		}

		prefix := rulePrefix(runID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r rule.Rule
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode rule %s: %w", it.Item().Key(), err)
			}
			snap.Rules = append(snap.Rules, &r)
		}
		return nil
	})
	return snap, err
}

// Runs lists the metadata of every saved run, ordered by run ID.
func (s *PopulationStore) Runs(ctx context.Context) ([]RunMeta, error) {
	var runs []RunMeta
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		prefix := []byte(metaPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var meta RunMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decode run meta %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, meta)
		}
		return nil
	})
	return runs, err
}

// Delete removes the snapshot of runID. Deleting an unknown run is not an
// error.
func (s *PopulationStore) Delete(ctx context.Context, runID string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	if err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(metaKey(runID))
	}); err != nil {
		return fmt.Errorf("delete run meta: %w", err)
	}
	if err := s.deleteRules(ctx, runID); err != nil {
		return fmt.Errorf("delete rules: %w", err)
	}
	return nil
}

// deleteRules removes every rule key of runID through a write batch.
func (s *PopulationStore) deleteRules(ctx context.Context, runID string) error {
	var keys [][]byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		prefix := rulePrefix(runID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}
