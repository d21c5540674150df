package fisco

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory RunStore, used by tests and throwaway
// backtests that do not need persistence.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string][]LedgerEntry
	proposals map[string][]Proposal
	buckets   map[string][]TaxLossBucket
	equity    map[string][]EquityPoint
	runTypes  map[string]RunType
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string][]LedgerEntry),
		proposals: make(map[string][]Proposal),
		buckets:   make(map[string][]TaxLossBucket),
		equity:    make(map[string][]EquityPoint),
		runTypes:  make(map[string]RunType),
	}
}

func (s *MemoryStore) SaveRun(_ context.Context, res *RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	runID := res.Ledger.RunID()
	if _, ok := s.runTypes[runID]; ok {
		return fmt.Errorf("run %q already stored", runID)
	}
	entries := make([]LedgerEntry, 0, res.Ledger.Len())
	for _, e := range res.Ledger.Entries() {
		entries = append(entries, e)
	}
	s.entries[runID] = entries
	s.proposals[runID] = append([]Proposal(nil), res.Proposals...)
	s.buckets[runID] = append([]TaxLossBucket(nil), res.Buckets...)
	s.equity[runID] = append([]EquityPoint(nil), res.Equity...)
	s.runTypes[runID] = res.Ledger.RunType()
	return nil
}

func (s *MemoryStore) ClearRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, runID)
	delete(s.proposals, runID)
	delete(s.buckets, runID)
	delete(s.equity, runID)
	delete(s.runTypes, runID)
	return nil
}

func (s *MemoryStore) LoadEntries(_ context.Context, runID string) ([]LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.entries[runID]
	if !ok {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return append([]LedgerEntry(nil), entries...), nil
}

func (s *MemoryStore) LoadProposals(_ context.Context, runID string) ([]Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runTypes[runID]; !ok {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return append([]Proposal(nil), s.proposals[runID]...), nil
}

func (s *MemoryStore) LoadBuckets(_ context.Context, runID string) ([]TaxLossBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runTypes[runID]; !ok {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return append([]TaxLossBucket(nil), s.buckets[runID]...), nil
}

func (s *MemoryStore) LoadEquity(_ context.Context, runID string) ([]EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runTypes[runID]; !ok {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return append([]EquityPoint(nil), s.equity[runID]...), nil
}

func (s *MemoryStore) Runs(_ context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunInfo, 0, len(s.runTypes))
	for runID, runType := range s.runTypes {
		info := RunInfo{RunID: runID, RunType: runType, Entries: len(s.entries[runID])}
		if entries := s.entries[runID]; len(entries) > 0 {
			info.Start = entries[0].Date
			info.End = entries[len(entries)-1].Date
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
