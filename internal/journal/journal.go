// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package journal persists session events to BadgerDB as an append-only
// audit trail. Every event a session emits is stored under
// journal:<session>:<seq> with a monotonically increasing per-session
// sequence, so a finished session can be replayed in exact emission
// order for audit or dispute review.
//
// The journal is a sink, not a queue: nothing is confirmed or deleted
// per entry. Space is reclaimed by periodic value-log GC.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/metrics"
)

// keyPrefix namespaces journal entries within the Badger keyspace.
const keyPrefix = "journal:"

// gcRatio is the value-log rewrite threshold passed to Badger GC.
const gcRatio = 0.5

var (
	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("journal is closed")

	// ErrNilEvent is returned when a nil event is appended.
	ErrNilEvent = errors.New("event cannot be nil")
)

// Journal is a Badger-backed store of session events.
type Journal struct {
	db  *badger.DB
	cfg config.JournalConfig
	log zerolog.Logger

	// seqs holds the per-session sequence counters, lazily primed from
	// storage so sequences continue across restarts.
	seqs sync.Map // uuid.UUID -> *atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens the journal at the configured path. With
// InMemory set, nothing touches disk; sequences then reset with the
// process, which is what tests want.
func Open(cfg config.JournalConfig) (*Journal, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("journal path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	j := &Journal{
		db:  db,
		cfg: cfg,
		log: logging.With().Str("component", "journal").Logger(),
	}

	j.log.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Journal opened")
	return j, nil
}

// Append stores one event under the session's next sequence number.
// The event is validated before it is written.
func (j *Journal) Append(ctx context.Context, ev *events.SessionEvent) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	j.mu.RUnlock()

	if ev == nil {
		return ErrNilEvent
	}

	data, err := ev.Marshal()
	if err != nil {
		return err
	}

	seq, err := j.nextSeq(ev.SessionID)
	if err != nil {
		return err
	}

	key := entryKey(ev.SessionID, seq)
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	metrics.JournalAppends.Inc()
	return nil
}

// Replay returns every stored event of a session in append order. A
// session with no entries replays as an empty slice.
func (j *Journal) Replay(ctx context.Context, sessionID uuid.UUID) ([]events.SessionEvent, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil, ErrClosed
	}
	j.mu.RUnlock()

	var replayed []events.SessionEvent

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := sessionPrefix(sessionID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				ev, err := events.Unmarshal(val)
				if err != nil {
					return err
				}
				replayed = append(replayed, *ev)
				return nil
			})
			if err != nil {
				j.log.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable journal entry")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay session %s: %w", sessionID, err)
	}

	return replayed, nil
}

// RunGC reclaims value-log space. Call it periodically; it loops until
// Badger reports nothing left to rewrite. No-op for in-memory journals.
func (j *Journal) RunGC() error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	j.mu.RUnlock()

	if j.cfg.InMemory {
		return nil
	}

	for {
		err := j.db.RunValueLogGC(gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("journal GC: %w", err)
		}
	}
}

// Close shuts the journal down. Further operations return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	j.log.Info().Msg("Journal closed")
	return nil
}

// nextSeq allocates the next sequence number for a session, priming the
// counter from storage on first use after a restart.
func (j *Journal) nextSeq(sessionID uuid.UUID) (uint64, error) {
	if counter, ok := j.seqs.Load(sessionID); ok {
		return counter.(*atomic.Uint64).Add(1), nil
	}

	last, err := j.lastStoredSeq(sessionID)
	if err != nil {
		return 0, err
	}
	counter := &atomic.Uint64{}
	counter.Store(last)

	actual, _ := j.seqs.LoadOrStore(sessionID, counter)
	return actual.(*atomic.Uint64).Add(1), nil
}

// lastStoredSeq finds the highest sequence already stored for a session,
// zero when the session has no entries.
func (j *Journal) lastStoredSeq(sessionID uuid.UUID) (uint64, error) {
	var last uint64

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := sessionPrefix(sessionID)
		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		key := it.Item().Key()
		seq, err := strconv.ParseUint(string(key[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("malformed journal key %q: %w", key, err)
		}
		last = seq
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan last sequence: %w", err)
	}
	return last, nil
}

// sessionPrefix is the key prefix shared by one session's entries.
func sessionPrefix(sessionID uuid.UUID) []byte {
	return []byte(keyPrefix + sessionID.String() + ":")
}

// entryKey builds a session entry key. Sequences are zero-padded so
// lexicographic key order matches numeric order during iteration.
func entryKey(sessionID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%012d", keyPrefix, sessionID, seq))
}
