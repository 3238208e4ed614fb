package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Campos únicos por coleção, os mesmos dos índices únicos do Postgres e do Mongo
var memoryUniqueFields = map[string]string{CollectionUsers: "email"}

type memoryEntry struct {
	rev  string
	body []byte
	seq  uint64
}

// MemoryDocumentStore implementa DocumentStore em memória
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryEntry
	seq         uint64
}

// NewMemoryDocumentStore cria um store vazio com as quatro coleções
func NewMemoryDocumentStore() *MemoryDocumentStore {
	s := &MemoryDocumentStore{collections: make(map[string]map[string]memoryEntry)}
	for _, c := range collections {
		s.collections[c] = make(map[string]memoryEntry)
	}
	return s
}

func (s *MemoryDocumentStore) collection(name string) (map[string]memoryEntry, error) {
	if err := validateCollection(name); err != nil {
		return nil, err
	}
	return s.collections[name], nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, collection, id string) (*RawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	entry, ok := docs[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return &RawDocument{ID: id, Rev: entry.rev, Body: cloneBytes(entry.body)}, nil
}

func (s *MemoryDocumentStore) Insert(_ context.Context, collection string, doc RawDocument) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.collection(collection)
	if err != nil {
		return "", err
	}
	current, exists := docs[doc.ID]
	switch {
	case doc.Rev == "" && exists:
		return "", fmt.Errorf("%s/%s already exists: %w", collection, doc.ID, ErrConflict)
	case doc.Rev != "" && !exists:
		return "", fmt.Errorf("%s/%s: %w", collection, doc.ID, ErrNotFound)
	case doc.Rev != "" && current.rev != doc.Rev:
		return "", fmt.Errorf("%s/%s: %w", collection, doc.ID, ErrConflict)
	}
	if err := checkUnique(collection, docs, doc); err != nil {
		return "", err
	}

	seq := current.seq
	if !exists {
		s.seq++
		seq = s.seq
	}
	rev := newRevision(doc.Rev)
	docs[doc.ID] = memoryEntry{rev: rev, body: cloneBytes(doc.Body), seq: seq}
	return rev, nil
}

// checkUnique deve ser chamado com s.mu travado
func checkUnique(collection string, docs map[string]memoryEntry, doc RawDocument) error {
	field, ok := memoryUniqueFields[collection]
	if !ok {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(doc.Body, &fields); err != nil {
		return fmt.Errorf("failed to decode document body: %w", err)
	}
	value, ok := fields[field]
	if !ok || value == nil {
		return nil
	}

	selector := Selector{field: value}
	for id, entry := range docs {
		if id == doc.ID {
			continue
		}
		taken, err := matchesSelector(entry.body, selector)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%s.%s %v already used by %s: %w", collection, field, value, id, ErrConflict)
		}
	}
	return nil
}

func (s *MemoryDocumentStore) Destroy(_ context.Context, collection, id, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.collection(collection)
	if err != nil {
		return err
	}
	current, ok := docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if current.rev != rev {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}
	delete(docs, id)
	return nil
}

func (s *MemoryDocumentStore) Find(_ context.Context, collection string, selector Selector, limit int) ([]RawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	type match struct {
		doc RawDocument
		seq uint64
	}
	matches := make([]match, 0)
	for id, entry := range docs {
		ok, err := matchesSelector(entry.body, selector)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, match{
				doc: RawDocument{ID: id, Rev: entry.rev, Body: cloneBytes(entry.body)},
				seq: entry.seq,
			})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	result := make([]RawDocument, len(matches))
	for i, m := range matches {
		result[i] = m.doc
	}
	return result, nil
}

func (s *MemoryDocumentStore) Ping(context.Context) error { return nil }

func (s *MemoryDocumentStore) Close(context.Context) error { return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
