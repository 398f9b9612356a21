package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dshills/docindex/internal/chunker"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
)

var errBrokenDoc = errors.New("broken document")

// paragraphSplitter makes one chunk per blank-line separated paragraph
type paragraphSplitter struct{}

func (paragraphSplitter) Split(content, filePath string) ([]types.RawChunk, error) {
	if strings.Contains(content, "<<broken>>") {
		return nil, errBrokenDoc
	}
	var chunks []types.RawChunk
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, types.RawChunk{Breadcrumb: filePath, Content: p})
	}
	return chunks, nil
}

// memSource is an in-memory Source
type memSource struct {
	mu          sync.Mutex
	files       map[string]string
	readErr     map[string]error
	discoverErr error
}

func newMemSource(files map[string]string) *memSource {
	return &memSource{files: files, readErr: map[string]error{}}
}

func (s *memSource) Discover(include, exclude []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discoverErr != nil {
		return nil, s.discoverErr
	}
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths, nil
}

func (s *memSource) Read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr[path]; err != nil {
		return nil, err
	}
	content, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file %s", path)
	}
	return []byte(content), nil
}

func (s *memSource) Root() string { return "" }

func (s *memSource) set(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

func (s *memSource) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

// countingEmbedder reports one token per word and fails on listed texts
type countingEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn map[string]bool
}

func (e *countingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	e.mu.Lock()
	e.calls++
	fail := e.failOn[req.Text]
	e.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("%w: rate limited", embedder.ErrProviderFailed)
	}
	return &embedder.Embedding{
		Vector:     []float32{float32(len(req.Text)), 1},
		Dimension:  2,
		Provider:   "fake",
		Model:      "fake-1",
		TokenCount: len(strings.Fields(req.Text)),
	}, nil
}

func (e *countingEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *countingEmbedder) Dimension() int   { return 2 }
func (e *countingEmbedder) Provider() string { return "fake" }
func (e *countingEmbedder) Model() string    { return "fake-1" }
func (e *countingEmbedder) Close() error     { return nil }

// memStore is an in-memory Storage that counts mutating calls
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*storage.ChunkRecord
	meta    map[string]string

	writes  int // UpsertChunks, DeleteChunks and SetMeta calls
	pingErr error
	listErr error
	hashErr map[string]error // file path -> ListChunkHashes error
	delErr  error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[int64]*storage.ChunkRecord),
		meta:    make(map[string]string),
		hashErr: make(map[string]error),
	}
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *memStore) ListChunkHashes(ctx context.Context, filePath string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hashErr[filePath]; err != nil {
		return nil, err
	}
	hashes := make(map[string]int64)
	for id, r := range m.records {
		if r.FilePath == filePath {
			hashes[r.ContentHash] = id
		}
	}
	return hashes, nil
}

func (m *memStore) ListFilePaths(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	seen := make(map[string]struct{})
	for _, r := range m.records {
		seen[r.FilePath] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths, nil
}

func (m *memStore) ListChunksByFile(ctx context.Context, filePath string) ([]*storage.ChunkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.ChunkRecord
	for _, r := range m.records {
		if r.FilePath == filePath {
			copied := *r
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *storage.ChunkRecord) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) UpsertChunks(ctx context.Context, records []*storage.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	for _, rec := range records {
		var id int64
		for existing, r := range m.records {
			if r.FilePath == rec.FilePath && r.ContentHash == rec.ContentHash {
				id = existing
			}
		}
		if id == 0 {
			m.nextID++
			id = m.nextID
		}
		rec.ID = id
		copied := *rec
		m.records[id] = &copied
	}
	return nil
}

func (m *memStore) DeleteChunks(ctx context.Context, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.delErr != nil {
		return 0, m.delErr
	}
	n := 0
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetStatus(ctx context.Context) (*storage.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &storage.Status{Backend: "memory", Chunks: len(m.records), Meta: m.meta}, nil
}

func (m *memStore) GetMeta(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.meta[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memStore) SetMeta(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.meta[key] = value
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// hashes returns the stored content hashes for path, sorted
func (m *memStore) hashes(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.records {
		if r.FilePath == path {
			out = append(out, r.ContentHash)
		}
	}
	slices.Sort(out)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	source   *memSource
	store    *memStore
	embedder *countingEmbedder
	indexer  *Indexer
}

func newFixture(files map[string]string) *fixture {
	f := &fixture{
		source:   newMemSource(files),
		store:    newMemStore(),
		embedder: &countingEmbedder{failOn: map[string]bool{}},
	}
	f.indexer = New(Config{
		Source:      f.source,
		Chunker:     chunker.New(paragraphSplitter{}, tokens.Heuristic{}),
		Store:       f.store,
		Embedder:    f.embedder,
		Concurrency: 4,
		Logger:      discardLogger(),
	})
	return f
}

func hashesOf(contents ...string) []string {
	out := make([]string, len(contents))
	for i, c := range contents {
		out[i] = types.ComputeContentHash(c)
	}
	slices.Sort(out)
	return out
}
