package sync

import (
	"fmt"
	"testing"
)

// countingFlush records every chunk it receives.
type countingFlush struct {
	chunks []int
	fail   bool
}

func (c *countingFlush) flush(b Batch) (int, error) {
	if c.fail {
		return 0, fmt.Errorf("flush failed")
	}
	c.chunks = append(c.chunks, len(b.Rows))
	return len(b.Rows), nil
}

func TestChunkWriter_FlushCounts(t *testing.T) {
	tests := []struct {
		name       string
		rows       int
		chunkSize  int
		wantChunks []int
	}{
		{"empty stream", 0, 3, nil},
		{"single partial chunk", 2, 3, []int{2}},
		{"exact chunk", 3, 3, []int{3}},
		{"full plus partial", 7, 3, []int{3, 3, 1}},
		{"multiple exact chunks", 6, 3, []int{3, 3}},
		{"default size", 5, 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &countingFlush{}
			w := NewChunkWriter("receipts", []string{"id"}, tt.chunkSize, counter.flush)

			for i := 0; i < tt.rows; i++ {
				if err := w.Add(Row{"id": int64(i)}); err != nil {
					t.Fatalf("Add() failed: %v", err)
				}
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush() failed: %v", err)
			}

			if len(counter.chunks) != len(tt.wantChunks) {
				t.Fatalf("flushed %d chunks %v, want %v",
					len(counter.chunks), counter.chunks, tt.wantChunks)
			}
			total := 0
			for i, n := range counter.chunks {
				if n != tt.wantChunks[i] {
					t.Errorf("chunk %d = %d rows, want %d", i, n, tt.wantChunks[i])
				}
				total += n
			}
			if total != tt.rows {
				t.Errorf("total flushed = %d, want %d", total, tt.rows)
			}
			if w.Written() != tt.rows {
				t.Errorf("Written() = %d, want %d", w.Written(), tt.rows)
			}
		})
	}
}

func TestChunkWriter_DoubleFlushIsSafe(t *testing.T) {
	counter := &countingFlush{}
	w := NewChunkWriter("receipts", []string{"id"}, 10, counter.flush)

	if err := w.Add(Row{"id": int64(1)}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("first Flush() failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("second Flush() failed: %v", err)
	}

	if len(counter.chunks) != 1 {
		t.Errorf("flushed %d chunks, want 1 (every row flushed exactly once)", len(counter.chunks))
	}
}

func TestChunkWriter_FlushErrorPropagates(t *testing.T) {
	counter := &countingFlush{fail: true}
	w := NewChunkWriter("receipts", []string{"id"}, 1, counter.flush)

	if err := w.Add(Row{"id": int64(1)}); err == nil {
		t.Fatal("Add() succeeded, want flush error")
	}
}
