// Package vector provides a flat vector index with exact nearest-neighbor
// search and similarity helpers.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// FlatIndex is a brute-force L2 index. Vectors are stored append-only; row i
// is the i-th vector ever added. There is no in-place delete: callers rebuild
// a fresh index from reconstructed rows. The index does no locking of its own;
// the owning store serializes access.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
}

// Candidate is a single nearest-neighbor hit. Distance is squared L2, so
// smaller means more similar.
type Candidate struct {
	Row      int
	Distance float64
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Add appends one vector to the index.
func (f *FlatIndex) Add(vec []float32) error {
	if len(vec) != f.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
	}
	cp := make([]float32, f.dimensions)
	copy(cp, vec)
	f.vectors = append(f.vectors, cp)
	return nil
}

// Search returns up to k candidate rows ordered by ascending L2 distance.
func (f *FlatIndex) Search(query []float32, k int) ([]Candidate, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	candidates := make([]Candidate, len(f.vectors))
	for i, vec := range f.vectors {
		var dist float64
		for j := 0; j < f.dimensions; j++ {
			d := float64(query[j] - vec[j])
			dist += d * d
		}
		candidates[i] = Candidate{Row: i, Distance: dist}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// Reconstruct returns a copy of the vector stored at row.
func (f *FlatIndex) Reconstruct(row int) ([]float32, error) {
	if row < 0 || row >= len(f.vectors) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", row, len(f.vectors))
	}
	cp := make([]float32, f.dimensions)
	copy(cp, f.vectors[row])
	return cp, nil
}

// Count returns the number of vectors in the index.
func (f *FlatIndex) Count() int {
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Save persists the index to path. Directory is created if needed.
// Format: dimension (4), n (4), then n vectors of dimension*4 bytes.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	if err := binary.Write(file, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range f.vectors {
		if _, err := file.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// LoadFlatIndex reads an index from path. Returns an error if the file cannot
// be opened or parsed, or if the stored dimension differs from dimensions.
func LoadFlatIndex(path string, dimensions int) (*FlatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	var dim, n uint32
	if err := binary.Read(file, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("dimension mismatch: file has %d, expected %d", dim, dimensions)
	}
	if err := binary.Read(file, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	idx := &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0, n),
	}
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(file, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		idx.vectors = append(idx.vectors, bytesToFloat32Slice(buf))
	}
	return idx, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
