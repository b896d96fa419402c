package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
)

// entry is one stored version of a blob. Its data is never mutated.
type entry struct {
	data []byte
}

// MemoryStore keeps blobs in memory. It is safe for concurrent use and is
// mostly useful in tests and for short-lived snapshots.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

// Open returns a handle pinned to the current version of name.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &memoryBlob{store: m, name: name, e: e}, nil
}

// Create returns a writer whose content replaces name on Close.
func (m *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryWriter{store: m, name: name}, nil
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.commit(name, bytes.Clone(data))
	return nil
}

func (m *MemoryStore) commit(name string, data []byte) {
	if data == nil {
		data = []byte{}
	}
	m.mu.Lock()
	m.entries[name] = &entry{data: data}
	m.mu.Unlock()
}

// current reports whether e is still the stored version of name.
func (m *MemoryStore) current(name string, e *entry) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[name] == e
}

// Delete removes name.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, name)
	m.mu.Unlock()
	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names, nil
}

type memoryBlob struct {
	store *MemoryStore
	name  string
	e     *entry
}

func (b *memoryBlob) check(ctx context.Context, off int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if off < 0 {
		return errors.New("blobstore: negative offset")
	}
	if !b.store.current(b.name, b.e) {
		return ErrModified
	}
	return nil
}

func (b *memoryBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.check(ctx, off); err != nil {
		return 0, err
	}
	data := b.e.data
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := b.check(ctx, off); err != nil {
		return nil, err
	}
	data := b.e.data
	if off >= int64(len(data)) || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *memoryBlob) Size() int64 { return int64(len(b.e.data)) }

func (b *memoryBlob) Close() error { return nil }

type memoryWriter struct {
	store *MemoryStore
	name  string

	mu   sync.Mutex
	buf  bytes.Buffer
	done bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return io.ErrClosedPipe
	}
	w.done = true
	w.store.commit(w.name, bytes.Clone(w.buf.Bytes()))
	w.buf.Reset()
	return nil
}

func (w *memoryWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.buf.Reset()
	return nil
}
