// Package model contains the values passed between producers and consumers.
package model

import (
	"fmt"
	"iter"
)

// Item is one unit of work. Producer p emits Seq 1..N in order.
type Item struct {
	Producer int // zero-based producer index
	Seq      int // 1-based position within the producer's stream
}

// String renders the item as "p<producer>#<seq>".
func (i Item) String() string {
	return fmt.Sprintf("p%d#%d", i.Producer, i.Seq)
}

// Sequence yields Items for producer 1..n, stopping early if the consumer of
// the iterator stops.
func Sequence(producer, n int) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for seq := 1; seq <= n; seq++ {
			if !yield(Item{Producer: producer, Seq: seq}) {
				return
			}
		}
	}
}

// Seqs extracts the sequence numbers of items, preserving order.
func Seqs(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Seq
	}
	return out
}
