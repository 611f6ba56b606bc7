// Package contextstore is an in-memory shared context store with type
// and tag indexing, TTL expiry, and LRU eviction at a cache ceiling.
package contextstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContextType categorizes a stored entry for type-indexed lookup.
type ContextType string

const (
	TypeUserProfile         ContextType = "user_profile"
	TypeConversationHistory ContextType = "conversation_history"
	TypeTaskContext         ContextType = "task_context"
	TypeAgentKnowledge      ContextType = "agent_knowledge"
	TypeSharedMemory        ContextType = "shared_memory"
	TypeSystemState         ContextType = "system_state"
)

// Valid returns true if the type is a known value.
func (t ContextType) Valid() bool {
	switch t {
	case TypeUserProfile, TypeConversationHistory, TypeTaskContext,
		TypeAgentKnowledge, TypeSharedMemory, TypeSystemState:
		return true
	default:
		return false
	}
}

// Entry is one stored piece of shared context.
type Entry struct {
	ID           string         `json:"id"`
	Type         ContextType    `json:"type"`
	Data         map[string]any `json:"data"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	AccessCount  int            `json:"access_count"`
	Tags         []string       `json:"tags,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`
	OwnerAgentID string         `json:"owner_agent_id,omitempty"`
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// accessRecord is one entry of the access analytics history.
type accessRecord struct {
	Timestamp       time.Time
	ContextID       string
	RequestingAgent string
}

const (
	accessHistoryMax  = 10000
	accessHistoryKeep = 5000
)

// Store holds shared context entries. One coarse lock protects the
// entries and both indices; mutations are cheap relative to agent work
// so contention is not a concern here.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	typeIndex map[ContextType]map[string]struct{}
	tagIndex  map[string]map[string]struct{}
	access    []accessRecord

	ceiling       int
	defaultTTL    time.Duration
	sweepInterval time.Duration
	logf          func(format string, args ...any)

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultTTL sets the expiry applied to entries stored without an
// explicit TTL. Zero means such entries never expire.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) { s.defaultTTL = ttl }
}

// WithSweepInterval enables a background goroutine that purges expired
// entries on the given interval. Zero disables the sweep; expiry is
// then enforced lazily on access only.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) { s.sweepInterval = interval }
}

// WithLogf routes non-fatal store events to the given logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Store) { s.logf = logf }
}

// New creates a Store with the given cache ceiling. A ceiling below one
// falls back to 1000 entries.
func New(ceiling int, opts ...Option) *Store {
	if ceiling < 1 {
		ceiling = 1000
	}
	s := &Store{
		entries:   make(map[string]*Entry),
		typeIndex: make(map[ContextType]map[string]struct{}),
		tagIndex:  make(map[string]map[string]struct{}),
		ceiling:   ceiling,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepInterval > 0 {
		go s.sweepLoop()
	}
	return s
}

// Close stops the background sweep. The store remains usable.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			n := s.purgeExpiredLocked(time.Now())
			s.mu.Unlock()
			if n > 0 && s.logf != nil {
				s.logf("context sweep removed %d expired entries", n)
			}
		}
	}
}

// StoreOption adjusts a single Store call.
type StoreOption func(*storeParams)

type storeParams struct {
	tags   []string
	ttl    time.Duration
	ttlSet bool
	owner  string
}

// WithTags attaches tags for tag-indexed search.
func WithTags(tags ...string) StoreOption {
	return func(p *storeParams) { p.tags = append(p.tags, tags...) }
}

// WithTTL sets the entry's time to live. A zero TTL makes the entry
// immediately unavailable to later reads.
func WithTTL(ttl time.Duration) StoreOption {
	return func(p *storeParams) {
		p.ttl = ttl
		p.ttlSet = true
	}
}

// WithOwner restricts deletion of the entry to the given agent.
func WithOwner(agentID string) StoreOption {
	return func(p *storeParams) { p.owner = agentID }
}

// Store saves a new entry and returns its id. It always succeeds; the
// cache ceiling is enforced afterwards by purging expired entries and,
// if still over, evicting the stalest fifth.
func (s *Store) Store(ctxType ContextType, data map[string]any, opts ...StoreOption) string {
	var p storeParams
	for _, opt := range opts {
		opt(&p)
	}
	if !p.ttlSet {
		p.ttl = s.defaultTTL
		p.ttlSet = s.defaultTTL > 0
	}

	now := time.Now()
	id := fmt.Sprintf("%s_%d_%s", ctxType, now.UnixMilli(), uuid.NewString()[:8])

	entry := &Entry{
		ID:           id,
		Type:         ctxType,
		Data:         copyData(data),
		CreatedAt:    now,
		UpdatedAt:    now,
		Tags:         append([]string(nil), p.tags...),
		OwnerAgentID: p.owner,
	}
	if p.ttlSet {
		entry.ExpiresAt = now.Add(p.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry
	s.indexLocked(entry)
	s.enforceCeilingLocked(now)
	return id
}

// Retrieve returns the entry by id, or false if it is absent or
// expired. Expired entries are deleted on the way out. Successful reads
// bump the access count and are recorded for analytics.
func (s *Store) Retrieve(contextID, requestingAgent string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contextID]
	if !ok {
		return Entry{}, false
	}
	if entry.expired(time.Now()) {
		s.removeLocked(contextID)
		return Entry{}, false
	}

	entry.AccessCount++
	s.recordAccessLocked(contextID, requestingAgent)
	return snapshot(entry), true
}

// Query narrows a Search call. Zero values mean "any".
type Query struct {
	Type  ContextType
	Tags  []string
	Text  string
	Limit int
}

// Search returns entries matching the query, sorted by access count
// then recency, both descending. Expired candidates are purged as they
// are found.
func (s *Store) Search(q Query) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidateIDsLocked(q)
	now := time.Now()

	matched := make([]*Entry, 0, len(candidates))
	for _, id := range candidates {
		entry, ok := s.entries[id]
		if !ok {
			continue
		}
		if entry.expired(now) {
			s.removeLocked(id)
			continue
		}
		if q.Text != "" && !matchesText(entry, q.Text) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].AccessCount != matched[j].AccessCount {
			return matched[i].AccessCount > matched[j].AccessCount
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	limit := q.Limit
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}
	out := make([]Entry, 0, limit)
	for _, entry := range matched[:limit] {
		out = append(out, snapshot(entry))
	}
	return out
}

// candidateIDsLocked intersects the type and tag indices, falling back
// to all entries when neither is constrained. IDs come back sorted so
// search results are stable.
func (s *Store) candidateIDsLocked(q Query) []string {
	var sets []map[string]struct{}
	if q.Type != "" {
		sets = append(sets, s.typeIndex[q.Type])
	}
	for _, tag := range q.Tags {
		sets = append(sets, s.tagIndex[tag])
	}

	var ids []string
	if len(sets) == 0 {
		ids = make([]string, 0, len(s.entries))
		for id := range s.entries {
			ids = append(ids, id)
		}
	} else {
		base := sets[0]
		for id := range base {
			inAll := true
			for _, set := range sets[1:] {
				if _, ok := set[id]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func matchesText(entry *Entry, text string) bool {
	serialized, err := json.Marshal(entry.Data)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(serialized)), strings.ToLower(text))
}

// Update merges fields into an existing entry's data and bumps its
// update time. Returns false if the entry is absent or expired.
func (s *Store) Update(contextID string, partial map[string]any, requestingAgent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contextID]
	if !ok {
		return false
	}
	if entry.expired(time.Now()) {
		s.removeLocked(contextID)
		return false
	}

	for k, v := range partial {
		entry.Data[k] = v
	}
	entry.UpdatedAt = time.Now()
	s.recordAccessLocked(contextID, requestingAgent)
	return true
}

// Delete removes an entry. Entries with an owner are only deletable by
// that owner; ownerless entries are deletable by anyone. Returns false
// if the entry is absent or the requester is not allowed.
func (s *Store) Delete(contextID, requestingAgent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contextID]
	if !ok {
		return false
	}
	if entry.OwnerAgentID != "" && entry.OwnerAgentID != requestingAgent {
		return false
	}
	s.removeLocked(contextID)
	return true
}

func (s *Store) indexLocked(entry *Entry) {
	if s.typeIndex[entry.Type] == nil {
		s.typeIndex[entry.Type] = make(map[string]struct{})
	}
	s.typeIndex[entry.Type][entry.ID] = struct{}{}
	for _, tag := range entry.Tags {
		if s.tagIndex[tag] == nil {
			s.tagIndex[tag] = make(map[string]struct{})
		}
		s.tagIndex[tag][entry.ID] = struct{}{}
	}
}

func (s *Store) removeLocked(contextID string) {
	entry, ok := s.entries[contextID]
	if !ok {
		return
	}
	delete(s.entries, contextID)

	if set := s.typeIndex[entry.Type]; set != nil {
		delete(set, contextID)
		if len(set) == 0 {
			delete(s.typeIndex, entry.Type)
		}
	}
	for _, tag := range entry.Tags {
		if set := s.tagIndex[tag]; set != nil {
			delete(set, contextID)
			if len(set) == 0 {
				delete(s.tagIndex, tag)
			}
		}
	}
}

// enforceCeilingLocked purges expired entries when over the ceiling,
// then evicts the lowest-updatedAt 20% if still over.
func (s *Store) enforceCeilingLocked(now time.Time) {
	if len(s.entries) <= s.ceiling {
		return
	}
	s.purgeExpiredLocked(now)
	if len(s.entries) <= s.ceiling {
		return
	}

	type aged struct {
		id        string
		updatedAt time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for id, entry := range s.entries {
		all = append(all, aged{id, entry.UpdatedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].updatedAt.Equal(all[j].updatedAt) {
			return all[i].updatedAt.Before(all[j].updatedAt)
		}
		return all[i].id < all[j].id
	})

	removeCount := len(all) / 5
	if removeCount < 1 {
		removeCount = 1
	}
	for _, a := range all[:removeCount] {
		s.removeLocked(a.id)
	}
	if s.logf != nil {
		s.logf("context store evicted %d stale entries", removeCount)
	}
}

func (s *Store) purgeExpiredLocked(now time.Time) int {
	var expired []string
	for id, entry := range s.entries {
		if entry.expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.removeLocked(id)
	}
	return len(expired)
}

func (s *Store) recordAccessLocked(contextID, requestingAgent string) {
	s.access = append(s.access, accessRecord{
		Timestamp:       time.Now(),
		ContextID:       contextID,
		RequestingAgent: requestingAgent,
	})
	if len(s.access) > accessHistoryMax {
		s.access = append([]accessRecord(nil), s.access[len(s.access)-accessHistoryKeep:]...)
	}
}

// Stats summarizes store contents for health reporting.
type Stats struct {
	TotalEntries      int                 `json:"total_entries"`
	EntriesByType     map[ContextType]int `json:"entries_by_type"`
	TotalTags         int                 `json:"total_tags"`
	CacheUsage        float64             `json:"cache_usage"`
	AccessHistorySize int                 `json:"access_history_size"`
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[ContextType]int, len(s.typeIndex))
	for t, set := range s.typeIndex {
		byType[t] = len(set)
	}
	return Stats{
		TotalEntries:      len(s.entries),
		EntriesByType:     byType,
		TotalTags:         len(s.tagIndex),
		CacheUsage:        float64(len(s.entries)) / float64(s.ceiling),
		AccessHistorySize: len(s.access),
	}
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func snapshot(entry *Entry) Entry {
	out := *entry
	out.Data = copyData(entry.Data)
	out.Tags = append([]string(nil), entry.Tags...)
	return out
}
