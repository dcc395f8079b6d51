// Package vectorstore persists chunk embeddings and metadata and serves
// hybrid vector+keyword retrieval.
package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Store pairs an append-only flat vector index with a chunk metadata list.
// Row i of the index corresponds to meta[i]; this positional correspondence
// is the store's load-bearing invariant, so all mutation happens under the
// write lock and delete rebuilds both sides in lockstep.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	index      *vector.FlatIndex
	meta       []models.Chunk
	indexPath  string
	metaPath   string
	logger     *zap.Logger
}

// candidateMultiplier is how many nearest neighbors are fetched per requested
// result before keyword rescoring.
const candidateMultiplier = 3

// NewStore opens the store at the given paths, loading the persisted index
// and metadata sidecar. If either artifact is missing or fails to parse the
// store starts empty rather than failing: ingestion must always be retryable
// from a clean slate.
func NewStore(indexPath, metaPath string, dimensions int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		dimensions: dimensions,
		indexPath:  indexPath,
		metaPath:   metaPath,
		logger:     logger,
	}

	idx, meta, err := loadArtifacts(indexPath, metaPath, dimensions)
	if err != nil {
		logger.Warn("vector store load failed, starting empty", zap.Error(err))
		idx, meta = nil, nil
	}
	if idx == nil {
		if idx, err = vector.NewFlatIndex(dimensions); err != nil {
			return nil, err
		}
		meta = make([]models.Chunk, 0)
	}
	if idx.Count() != len(meta) {
		logger.Warn("vector store artifacts out of sync, starting empty",
			zap.Int("vectors", idx.Count()), zap.Int("meta", len(meta)))
		if idx, err = vector.NewFlatIndex(dimensions); err != nil {
			return nil, err
		}
		meta = make([]models.Chunk, 0)
	}
	s.index = idx
	s.meta = meta
	logger.Info("vector store opened", zap.Int("vectors", idx.Count()), zap.Int("dimensions", dimensions))
	return s, nil
}

func loadArtifacts(indexPath, metaPath string, dimensions int) (*vector.FlatIndex, []models.Chunk, error) {
	if _, err := os.Stat(indexPath); err != nil {
		return nil, nil, nil
	}
	if _, err := os.Stat(metaPath); err != nil {
		return nil, nil, nil
	}
	idx, err := vector.LoadFlatIndex(indexPath, dimensions)
	if err != nil {
		return nil, nil, fmt.Errorf("load index: %w", err)
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read meta: %w", err)
	}
	var meta []models.Chunk
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, fmt.Errorf("parse meta: %w", err)
	}
	return idx, meta, nil
}

// Add appends one embedding/chunk pair. Duplicate text is never rejected.
func (s *Store) Add(embedding []float32, chunk models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Add(embedding); err != nil {
		return fmt.Errorf("index add: %w", err)
	}
	s.meta = append(s.meta, chunk)
	return s.checkInvariantLocked()
}

// Search runs two-stage hybrid retrieval: fetch retrievalK*3 nearest
// neighbors by L2 distance, rescore the candidates by how many query words
// appear in each chunk's text, and return the top retrievalK chunks sorted
// by keyword hits (ties keep vector-distance order).
func (s *Store) Search(queryEmbedding []float32, retrievalK int, queryText string) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates, err := s.index.Search(queryEmbedding, retrievalK*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	type scored struct {
		chunk models.Chunk
		hits  int
	}
	rescored := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		chunk := s.meta[c.Row]
		rescored = append(rescored, scored{chunk: chunk, hits: keywordScore(queryText, chunk.Text)})
	}
	sort.SliceStable(rescored, func(i, j int) bool { return rescored[i].hits > rescored[j].hits })
	if retrievalK > len(rescored) {
		retrievalK = len(rescored)
	}
	out := make([]models.Chunk, retrievalK)
	for i := 0; i < retrievalK; i++ {
		out[i] = rescored[i].chunk
	}
	return out, nil
}

// keywordScore counts how many whitespace-tokenized, case-folded query words
// appear as substrings in text.
func keywordScore(query, text string) int {
	textLower := strings.ToLower(text)
	score := 0
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(textLower, w) {
			score++
		}
	}
	return score
}

// Delete removes every entry whose chunk belongs to docID. The underlying
// index has no native delete, so surviving vectors are read back by position
// and a fresh index is rebuilt in the same relative order, then persisted.
// Returns the number of entries removed (0 when the document is unknown).
func (s *Store) Delete(docID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newMeta := make([]models.Chunk, 0, len(s.meta))
	survivors := make([][]float32, 0, len(s.meta))
	for i, entry := range s.meta {
		if entry.DocID == docID {
			continue
		}
		vec, err := s.index.Reconstruct(i)
		if err != nil {
			return 0, fmt.Errorf("reconstruct row %d: %w", i, err)
		}
		newMeta = append(newMeta, entry)
		survivors = append(survivors, vec)
	}
	removed := len(s.meta) - len(newMeta)
	if removed == 0 {
		return 0, nil
	}

	rebuilt, err := vector.NewFlatIndex(s.dimensions)
	if err != nil {
		return 0, err
	}
	for _, vec := range survivors {
		if err := rebuilt.Add(vec); err != nil {
			return 0, fmt.Errorf("rebuild index: %w", err)
		}
	}
	s.index = rebuilt
	s.meta = newMeta
	if err := s.checkInvariantLocked(); err != nil {
		return 0, err
	}
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	s.logger.Debug("document deleted from vector store",
		zap.String("doc_id", docID), zap.Int("removed", removed))
	return removed, nil
}

// Save persists both artifacts: the binary index blob and the JSON metadata
// sidecar.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := s.index.Save(s.indexPath); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	data, err := json.Marshal(s.meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if dir := filepath.Dir(s.metaPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create meta dir: %w", err)
		}
	}
	if err := os.WriteFile(s.metaPath, data, 0644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// checkInvariantLocked fails loudly when the index row count and metadata
// length diverge. This is a correctness bug, never a recoverable condition.
func (s *Store) checkInvariantLocked() error {
	if s.index.Count() != len(s.meta) {
		return fmt.Errorf("positional invariant violated: %d vectors vs %d metadata entries",
			s.index.Count(), len(s.meta))
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Count()
}

// Dimensions returns the embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Documents returns a map of doc_id to chunk count.
func (s *Store) Documents() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, entry := range s.meta {
		out[entry.DocID]++
	}
	return out
}

// ChunksByDoc returns all chunks belonging to docID in storage order.
func (s *Store) ChunksByDoc(docID string) []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Chunk
	for _, entry := range s.meta {
		if entry.DocID == docID {
			out = append(out, entry)
		}
	}
	return out
}

// Reconstruct returns a copy of the stored vector at row. Exposed for
// verification and debugging.
func (s *Store) Reconstruct(row int) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Reconstruct(row)
}

// IndexFileSize returns the on-disk size in bytes of the index blob, or 0
// when it has not been saved yet.
func (s *Store) IndexFileSize() int64 {
	info, err := os.Stat(s.indexPath)
	if err != nil {
		return 0
	}
	return info.Size()
}
