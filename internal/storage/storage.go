// Package storage persists bot state (play stats, queue snapshots) through
// a JSON file datastore with autosave and atomic writes.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/datastore"
)

const (
	statsKey    = "stats"
	snapshotKey = "queue_snapshot"
)

// StatsRecord is the persisted shape of the aggregate counters.
type StatsRecord struct {
	TotalPlays  int64     `json:"total_plays"`
	TotalUsers  int64     `json:"total_users"`
	LastUpdated time.Time `json:"last_updated"`
}

type Storage struct {
	ds *datastore.DataStore
}

func New(ctx context.Context, filePath string) (*Storage, error) {
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// Close stops the autosave routine and performs a final write to disk.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// SaveStats stores the aggregate counters. The datastore autosaves to disk.
func (s *Storage) SaveStats(rec StatsRecord) error {
	rec.LastUpdated = time.Now()
	return s.ds.Set(statsKey, rec)
}

// LoadStats returns the persisted counters, or a zero record when none exist.
func (s *Storage) LoadStats() (StatsRecord, error) {
	var rec StatsRecord
	found, err := s.ds.Get(statsKey, &rec)
	if err != nil {
		return StatsRecord{}, fmt.Errorf("decode stats record: %w", err)
	}
	if !found {
		return StatsRecord{}, nil
	}
	return rec, nil
}

// SaveQueueSnapshot stores serialized queue state for crash recovery.
func (s *Storage) SaveQueueSnapshot(b []byte) error {
	if !json.Valid(b) {
		return fmt.Errorf("queue snapshot is not valid JSON")
	}
	return s.ds.Set(snapshotKey, json.RawMessage(b))
}

// LoadQueueSnapshot returns the last saved queue state, or nil when absent.
func (s *Storage) LoadQueueSnapshot() ([]byte, error) {
	var raw json.RawMessage
	found, err := s.ds.Get(snapshotKey, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode queue snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return raw, nil
}
