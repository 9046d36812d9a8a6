package storage

import (
	"context"
	"sync"

	"github.com/xilidan/signposting/services/ai/consts"
	"go.mongodb.org/mongo-driver/bson"
)

// Memory keeps the three collections in process. Used for local runs and tests.
type Memory struct {
	mu           sync.Mutex
	collections  map[string][]bson.D
	profileField string
	acquired     int
}

func NewMemory(profileField string) *Memory {
	return &Memory{
		collections:  make(map[string][]bson.D),
		profileField: profileField,
	}
}

// Insert appends documents to a collection.
func (m *Memory) Insert(collection string, docs ...bson.D) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], docs...)
}

// Documents returns a copy of the collection's documents.
func (m *Memory) Documents(collection string) []bson.D {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bson.D, len(m.collections[collection]))
	copy(out, m.collections[collection])
	return out
}

// Open reports how many acquired handles have not been released yet.
func (m *Memory) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}

func (m *Memory) Acquire(ctx context.Context) (Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.acquired++
	m.mu.Unlock()
	return &memoryRecords{store: m}, nil
}

func (m *Memory) Close(context.Context) error {
	return nil
}

type memoryRecords struct {
	store    *Memory
	released sync.Once
}

// patchFirst applies fn to documents of collection in order until one matches.
func (r *memoryRecords) patchFirst(ctx context.Context, collection string, fn func(bson.D) (bson.D, bool)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	for i := range docs {
		if patched, ok := fn(docs[i]); ok {
			docs[i] = patched
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRecords) UpdateMessage(ctx context.Context, messageID, transcript, uri string) (bool, error) {
	return r.patchFirst(ctx, consts.CollectionMessages, func(doc bson.D) (bson.D, bool) {
		if !hasString(doc, consts.FieldMessageSid, messageID) {
			return doc, false
		}
		return PatchMessage(doc, transcript, uri), true
	})
}

func (r *memoryRecords) UpdateFlowResponse(ctx context.Context, messageID, transcript, uri string) (bool, error) {
	return r.patchFirst(ctx, consts.CollectionFlowHistory, func(doc bson.D) (bson.D, bool) {
		return PatchFlowResponse(doc, messageID, transcript, uri)
	})
}

func (r *memoryRecords) UpdateContactProfile(ctx context.Context, messageID, transcript string) (bool, error) {
	return r.patchFirst(ctx, consts.CollectionContacts, func(doc bson.D) (bson.D, bool) {
		return PatchContactProfile(doc, r.store.profileField, messageID, transcript)
	})
}

func (r *memoryRecords) Release() {
	r.released.Do(func() {
		r.store.mu.Lock()
		r.store.acquired--
		r.store.mu.Unlock()
	})
}
