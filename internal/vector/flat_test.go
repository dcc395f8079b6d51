package vector

import (
	"math"
	"path/filepath"
	"testing"
)

func TestNewFlatIndexRejectsBadDimensions(t *testing.T) {
	if _, err := NewFlatIndex(0); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestFlatIndexAddAndSearch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	vecs := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	for _, v := range vecs {
		if err := idx.Add(v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if idx.Count() != 3 {
		t.Errorf("Count = %d", idx.Count())
	}
	hits, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits", len(hits))
	}
	if hits[0].Row != 0 {
		t.Errorf("nearest row = %d, want 0", hits[0].Row)
	}
	if hits[1].Row != 2 {
		t.Errorf("second row = %d, want 2", hits[1].Row)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Error("distances not ascending")
	}
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if err := idx.Add([]float32{1, 2}); err == nil {
		t.Error("expected add dimension error")
	}
	if _, err := idx.Search([]float32{1, 2}, 1); err == nil {
		t.Error("expected search dimension error")
	}
}

func TestFlatIndexReconstruct(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]float32{0.5, -0.25})
	got, err := idx.Reconstruct(0)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if got[0] != 0.5 || got[1] != -0.25 {
		t.Errorf("Reconstruct = %v", got)
	}
	if _, err := idx.Reconstruct(1); err == nil {
		t.Error("expected out of range error")
	}
	// Reconstruct returns a copy, not the backing slice.
	got[0] = 99
	again, _ := idx.Reconstruct(0)
	if again[0] != 0.5 {
		t.Error("Reconstruct aliases internal storage")
	}
}

func TestFlatIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "index.bin")
	idx, _ := NewFlatIndex(4)
	_ = idx.Add([]float32{1, 2, 3, 4})
	_ = idx.Add([]float32{-1, 0.5, 0, 2.5})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadFlatIndex(path, 4)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("loaded count = %d", loaded.Count())
	}
	for row := 0; row < 2; row++ {
		a, _ := idx.Reconstruct(row)
		b, _ := loaded.Reconstruct(row)
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("row %d component %d: %v != %v", row, i, a[i], b[i])
			}
		}
	}
	if _, err := LoadFlatIndex(path, 8); err == nil {
		t.Error("expected dimension mismatch on load")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 0}); got != 0 {
		t.Errorf("zero vector: %v", got)
	}
	if got := CosineSimilarity([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("length mismatch: %v", got)
	}
}
