package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Coleções do document store
const (
	CollectionUsers     = "users"
	CollectionProducts  = "products"
	CollectionCustomers = "customers"
	CollectionSales     = "sales"
)

var collections = []string{CollectionUsers, CollectionProducts, CollectionCustomers, CollectionSales}

// RawDocument é um documento como o store o enxerga: id, revisão e corpo JSON
type RawDocument struct {
	ID   string
	Rev  string
	Body []byte
}

// Selector filtra documentos por igualdade em campos de primeiro nível
type Selector map[string]any

// DocumentStore define as operações do document store com concorrência otimista.
//
// Insert cria o documento quando Rev está vazio e falha com ErrConflict se o id já
// existir. Com Rev preenchido, só atualiza se a revisão atual for igual a Rev
// (ErrConflict caso contrário, ErrNotFound se o documento não existir).
// Toda escrita bem-sucedida gera uma nova revisão, que é retornada.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*RawDocument, error)
	Insert(ctx context.Context, collection string, doc RawDocument) (string, error)
	Destroy(ctx context.Context, collection, id, rev string) error
	Find(ctx context.Context, collection string, selector Selector, limit int) ([]RawDocument, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// newRevision gera a próxima revisão no formato "<geração>-<hex>"
func newRevision(prev string) string {
	gen := 0
	if i := strings.IndexByte(prev, '-'); i > 0 {
		gen, _ = strconv.Atoi(prev[:i])
	}
	return fmt.Sprintf("%d-%s", gen+1, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func validateCollection(name string) error {
	for _, c := range collections {
		if c == name {
			return nil
		}
	}
	return fmt.Errorf("unknown collection %q", name)
}

// matchesSelector compara os campos do selector com o corpo JSON do documento
func matchesSelector(body []byte, selector Selector) (bool, error) {
	if len(selector) == 0 {
		return true, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, fmt.Errorf("failed to decode document body: %w", err)
	}
	for key, want := range selector {
		got, ok := fields[key]
		if !ok {
			return false, nil
		}
		wantJSON, err := json.Marshal(want)
		if err != nil {
			return false, fmt.Errorf("failed to encode selector field %s: %w", key, err)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, got); err != nil {
			return false, err
		}
		if !bytes.Equal(compact.Bytes(), wantJSON) {
			return false, nil
		}
	}
	return true, nil
}

type document interface {
	meta() *Meta
}

// documentPtr restringe T a tipos cujo ponteiro embute Meta
type documentPtr[T any] interface {
	*T
	document
}

func decodeDocument[T any, PT documentPtr[T]](raw RawDocument) (PT, error) {
	doc := PT(new(T))
	if err := json.Unmarshal(raw.Body, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", raw.ID, err)
	}
	m := doc.meta()
	m.ID = raw.ID
	m.Rev = raw.Rev
	return doc, nil
}

func getDocument[T any, PT documentPtr[T]](ctx context.Context, store DocumentStore, collection, id string) (PT, error) {
	raw, err := store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return decodeDocument[T, PT](*raw)
}

func findDocuments[T any, PT documentPtr[T]](ctx context.Context, store DocumentStore, collection string, selector Selector, limit int) ([]PT, error) {
	raws, err := store.Find(ctx, collection, selector, limit)
	if err != nil {
		return nil, err
	}
	docs := make([]PT, 0, len(raws))
	for _, raw := range raws {
		doc, err := decodeDocument[T, PT](raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// putDocument grava o documento e atualiza sua revisão. Sem id, um novo é gerado.
func putDocument(ctx context.Context, store DocumentStore, collection string, doc document) error {
	m := doc.meta()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	prevRev := m.Rev
	m.Rev = ""
	body, err := json.Marshal(doc)
	m.Rev = prevRev
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", m.ID, err)
	}
	rev, err := store.Insert(ctx, collection, RawDocument{ID: m.ID, Rev: prevRev, Body: body})
	if err != nil {
		return err
	}
	m.Rev = rev
	return nil
}
