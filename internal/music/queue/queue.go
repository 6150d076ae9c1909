// Package queue owns the per-chat track queues and play history. It is a
// pure in-memory component: no network calls, no persistence of its own.
// Operations on one chat are linearizable against each other; operations on
// distinct chats never contend.
package queue

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"tunepilot/internal/music/sources"
)

const (
	DefaultMaxQueueSize = 100
	DefaultMaxHistory   = 50
)

var ErrQueueFull = errors.New("queue is full")

// Entry is one queued (or played) track together with who asked for it.
type Entry struct {
	Track       sources.Track `json:"track"`
	RequestedBy int64         `json:"requested_by"`
	EnqueuedAt  time.Time     `json:"enqueued_at"`
	Played      bool          `json:"played"`
}

// Page is one page of a chat's queue.
type Page struct {
	Items   []Entry `json:"items"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
	Pages   int     `json:"pages"`
}

// Snapshot is the full serializable state of a Store.
type Snapshot struct {
	Queues  map[int64][]Entry `json:"queues"`
	History map[int64][]Entry `json:"history"`
}

// Store holds the queue and history for every chat. The outer lock guards
// only the chat map; each chat carries its own mutex so chats never block
// each other.
type Store struct {
	mu         sync.RWMutex
	chats      map[int64]*chatQueue
	maxQueue   int
	maxHistory int
}

type chatQueue struct {
	mu      sync.Mutex
	items   []Entry
	history []Entry
}

func NewStore(maxQueue, maxHistory int) *Store {
	if maxQueue < 1 {
		maxQueue = DefaultMaxQueueSize
	}
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		chats:      make(map[int64]*chatQueue),
		maxQueue:   maxQueue,
		maxHistory: maxHistory,
	}
}

func (s *Store) chat(chatID int64) *chatQueue {
	s.mu.RLock()
	cq, ok := s.chats[chatID]
	s.mu.RUnlock()
	if ok {
		return cq
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cq, ok = s.chats[chatID]; ok {
		return cq
	}
	cq = &chatQueue{}
	s.chats[chatID] = cq
	return cq
}

// Enqueue appends a track to the tail of the chat's queue.
func (s *Store) Enqueue(chatID int64, track sources.Track, userID int64) error {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if len(cq.items) >= s.maxQueue {
		return ErrQueueFull
	}

	cq.items = append(cq.items, Entry{
		Track:       track,
		RequestedBy: userID,
		EnqueuedAt:  time.Now(),
	})
	return nil
}

// DequeueNext pops the head of the queue, marks it played and records it in
// the history. Returns nil when the queue is empty.
func (s *Store) DequeueNext(chatID int64) *Entry {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if len(cq.items) == 0 {
		return nil
	}

	entry := cq.items[0]
	cq.items = append([]Entry(nil), cq.items[1:]...)
	entry.Played = true

	cq.appendHistory(entry, s.maxHistory)
	return &entry
}

// PeekNext returns a copy of the head entry without removing it.
func (s *Store) PeekNext(chatID int64) *Entry {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if len(cq.items) == 0 {
		return nil
	}
	entry := cq.items[0]
	return &entry
}

// AddToHistory records a track that was played directly, bypassing the
// queue. The history bound applies as for dequeued entries.
func (s *Store) AddToHistory(chatID int64, track sources.Track, userID int64) {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	cq.appendHistory(Entry{
		Track:       track,
		RequestedBy: userID,
		EnqueuedAt:  time.Now(),
		Played:      true,
	}, s.maxHistory)
}

// RemoveAt removes and returns the entry at a 0-based position. Out-of-range
// positions are a soft failure: nil, no mutation.
func (s *Store) RemoveAt(chatID int64, position int) *Entry {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if position < 0 || position >= len(cq.items) {
		return nil
	}

	entry := cq.items[position]
	cq.items = append(cq.items[:position], cq.items[position+1:]...)
	return &entry
}

// Move relocates one entry from one 0-based position to another.
func (s *Store) Move(chatID int64, from, to int) bool {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	n := len(cq.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}

	entry := cq.items[from]
	items := append(cq.items[:from], cq.items[from+1:]...)
	items = append(items, Entry{})
	copy(items[to+1:], items[to:])
	items[to] = entry
	cq.items = items
	return true
}

// Shuffle randomizes the queue order in place. History is untouched.
func (s *Store) Shuffle(chatID int64) bool {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if len(cq.items) < 2 {
		return false
	}
	rand.Shuffle(len(cq.items), func(i, j int) {
		cq.items[i], cq.items[j] = cq.items[j], cq.items[i]
	})
	return true
}

// Clear empties the queue, leaving history intact.
func (s *Store) Clear(chatID int64) bool {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if len(cq.items) == 0 {
		return false
	}
	cq.items = nil
	return true
}

// Paginate returns one 1-based page of the queue. The page number is clamped
// into [1, pages]; an empty queue yields pages=0 and page=1.
func (s *Store) Paginate(chatID int64, page, perPage int) Page {
	if perPage < 1 {
		perPage = 10
	}

	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	total := len(cq.items)
	pages := (total + perPage - 1) / perPage

	if page < 1 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}

	result := Page{Total: total, Page: page, PerPage: perPage, Pages: pages, Items: []Entry{}}
	if total == 0 {
		return result
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}
	result.Items = append(result.Items, cq.items[start:end]...)
	return result
}

// History returns up to limit entries, most recent first.
func (s *Store) History(chatID int64, limit int) []Entry {
	if limit < 1 {
		limit = 10
	}

	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()

	n := len(cq.history)
	if limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, cq.history[i])
	}
	return out
}

// Size returns the number of queued entries for one chat.
func (s *Store) Size(chatID int64) int {
	cq := s.chat(chatID)
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return len(cq.items)
}

// TotalSize sums queued entries across all chats. Derived value for stats
// only, never a source of truth.
func (s *Store) TotalSize() int {
	s.mu.RLock()
	chats := make([]*chatQueue, 0, len(s.chats))
	for _, cq := range s.chats {
		chats = append(chats, cq)
	}
	s.mu.RUnlock()

	total := 0
	for _, cq := range chats {
		cq.mu.Lock()
		total += len(cq.items)
		cq.mu.Unlock()
	}
	return total
}

// Snapshot deep-copies the full queue and history state of every chat.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.chats))
	byID := make(map[int64]*chatQueue, len(s.chats))
	for id, cq := range s.chats {
		ids = append(ids, id)
		byID[id] = cq
	}
	s.mu.RUnlock()

	snap := Snapshot{
		Queues:  make(map[int64][]Entry, len(ids)),
		History: make(map[int64][]Entry, len(ids)),
	}
	for _, id := range ids {
		cq := byID[id]
		cq.mu.Lock()
		if len(cq.items) > 0 {
			snap.Queues[id] = append([]Entry(nil), cq.items...)
		}
		if len(cq.history) > 0 {
			snap.History[id] = append([]Entry(nil), cq.history...)
		}
		cq.mu.Unlock()
	}
	return snap
}

// Restore replaces the in-memory state wholesale with a snapshot.
func (s *Store) Restore(snap Snapshot) {
	chats := make(map[int64]*chatQueue)

	for id, items := range snap.Queues {
		cq := &chatQueue{items: append([]Entry(nil), items...)}
		if len(cq.items) > s.maxQueue {
			cq.items = cq.items[:s.maxQueue]
		}
		chats[id] = cq
	}
	for id, items := range snap.History {
		cq, ok := chats[id]
		if !ok {
			cq = &chatQueue{}
			chats[id] = cq
		}
		cq.history = append([]Entry(nil), items...)
		if extra := len(cq.history) - s.maxHistory; extra > 0 {
			cq.history = append([]Entry(nil), cq.history[extra:]...)
		}
	}

	s.mu.Lock()
	s.chats = chats
	s.mu.Unlock()
}

// appendHistory must be called with cq.mu held.
func (cq *chatQueue) appendHistory(entry Entry, maxHistory int) {
	cq.history = append(cq.history, entry)
	if extra := len(cq.history) - maxHistory; extra > 0 {
		cq.history = append([]Entry(nil), cq.history[extra:]...)
	}
}
