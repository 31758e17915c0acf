// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory persists per-session conversation history and rolling
// summaries in BadgerDB, so follow-up questions can be answered with
// context across service restarts.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key prefixes for conversation state.
const (
	keyPrefixConv     = "conv:v1:"
	keySuffixHistory  = ":history"
	keySuffixSummary  = ":summary"
	keySuffixDataFile = ":datafile"
)

// defaultTTL is the lifetime of a conversation entry. Sessions are
// ephemeral analysis contexts, not durable records.
const defaultTTL = 24 * time.Hour

// defaultMaxHistory bounds the retained message window per session.
// Older messages are folded into the rolling summary instead.
const defaultMaxHistory = 20

// Message roles stored in conversation history.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is one turn of a conversation.
type Message struct {
	// Role is RoleHuman or RoleAI.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// CreatedAtMilli is when the message was recorded (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`
}

// Store manages conversation state in BadgerDB.
//
// Description:
//
//	Each session holds a bounded message window, a rolling summary, and
//	the path of the data file the session is analyzing. All values are
//	JSON with a BadgerDB-native TTL; expired sessions simply read back
//	empty.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency
//	control; history appends go through read-modify-write transactions
//	that Badger retries on conflict.
type Store struct {
	db         *badger.DB
	logger     *slog.Logger
	ttl        time.Duration
	maxHistory int
}

// NewStore creates a conversation store over an opened BadgerDB.
//
// Inputs:
//
//	db - An opened BadgerDB instance. Must not be nil.
//	logger - Logger for diagnostic output. Must not be nil.
//
// Outputs:
//
//	*Store - The configured store.
//	error - Non-nil if db or logger is nil.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Store{
		db:         db,
		logger:     logger,
		ttl:        defaultTTL,
		maxHistory: defaultMaxHistory,
	}, nil
}

func historyKey(session string) []byte {
	return []byte(keyPrefixConv + session + keySuffixHistory)
}

func summaryKey(session string) []byte {
	return []byte(keyPrefixConv + session + keySuffixSummary)
}

func dataFileKey(session string) []byte {
	return []byte(keyPrefixConv + session + keySuffixDataFile)
}

// Append adds messages to a session's history, trimming the window to the
// configured maximum.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	session - The session identifier. Must not be empty.
//	msgs - Messages to append, in order.
//
// Outputs:
//
//	error - Non-nil on storage failure or empty session.
func (s *Store) Append(ctx context.Context, session string, msgs ...Message) error {
	if session == "" {
		return fmt.Errorf("memory: session must not be empty")
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for i := range msgs {
		if msgs[i].CreatedAtMilli == 0 {
			msgs[i].CreatedAtMilli = now
		}
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		history, err := readHistory(txn, session)
		if err != nil {
			return err
		}
		history = append(history, msgs...)
		if len(history) > s.maxHistory {
			history = history[len(history)-s.maxHistory:]
		}
		raw, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("marshaling history: %w", err)
		}
		entry := badger.NewEntry(historyKey(session), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("memory: appending to session %s: %w", session, err)
	}
	s.logger.Debug("conversation history appended",
		slog.String("session", session),
		slog.Int("added", len(msgs)))
	return nil
}

// History returns the session's retained message window, oldest first.
// A missing or expired session yields an empty slice, not an error.
func (s *Store) History(ctx context.Context, session string) ([]Message, error) {
	if session == "" {
		return nil, fmt.Errorf("memory: session must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var history []Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		history, err = readHistory(txn, session)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("memory: reading session %s: %w", session, err)
	}
	return history, nil
}

func readHistory(txn *badger.Txn, session string) ([]Message, error) {
	item, err := txn.Get(historyKey(session))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &history)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshaling history: %w", err)
	}
	return history, nil
}

// Summary returns the session's rolling summary, or "" when absent.
func (s *Store) Summary(ctx context.Context, session string) (string, error) {
	if session == "" {
		return "", fmt.Errorf("memory: session must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.readString(summaryKey(session), session)
}

// SetSummary replaces the session's rolling summary.
func (s *Store) SetSummary(ctx context.Context, session, summary string) error {
	if session == "" {
		return fmt.Errorf("memory: session must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeString(summaryKey(session), session, summary)
}

// DataFile returns the path of the spreadsheet associated with the
// session, or "" when none was uploaded.
func (s *Store) DataFile(ctx context.Context, session string) (string, error) {
	if session == "" {
		return "", fmt.Errorf("memory: session must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.readString(dataFileKey(session), session)
}

// SetDataFile records the spreadsheet path for the session.
func (s *Store) SetDataFile(ctx context.Context, session, path string) error {
	if session == "" {
		return fmt.Errorf("memory: session must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeString(dataFileKey(session), session, path)
}

// Clear removes all state for a session.
func (s *Store) Clear(ctx context.Context, session string) error {
	if session == "" {
		return fmt.Errorf("memory: session must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{historyKey(session), summaryKey(session), dataFileKey(session)} {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("memory: clearing session %s: %w", session, err)
	}
	return nil
}

func (s *Store) readString(key []byte, session string) (string, error) {
	var out string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("memory: reading session %s: %w", session, err)
	}
	return out, nil
}

func (s *Store) writeString(key []byte, session, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, []byte(value)).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("memory: writing session %s: %w", session, err)
	}
	return nil
}
