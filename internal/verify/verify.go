// Package verify checks consumed streams against what the producers emitted.
package verify

import (
	"errors"
	"fmt"

	"github.com/okian/handoff/internal/domain/model"
)

// maxReported caps how many failures of one kind are listed in Result.Err.
const maxReported = 5

// Config describes what the producers were asked to emit.
type Config struct {
	Producers        int
	ItemsPerProducer int
}

// Expected returns the total number of items the producers emit.
func (c Config) Expected() int {
	return c.Producers * c.ItemsPerProducer
}

// Result summarises a verification.
type Result struct {
	Expected   int
	Consumed   int
	Missing    int
	Duplicates int
	Unknown    int
	OutOfOrder int
	// Err joins every failure found; nil when the streams are correct.
	Err error
}

// OK reports whether the streams passed every check.
func (r Result) OK() bool { return r.Err == nil }

// Check verifies that streams, one per consumer, together hold every item
// exactly once, and that each producer's items arrive in increasing order
// within every stream. With one producer and one consumer the single stream
// must be exactly 1..N.
func Check(cfg Config, streams [][]model.Item) Result {
	res := Result{Expected: cfg.Expected()}
	var errs []error

	for _, stream := range streams {
		res.Consumed += len(stream)
	}
	seen := make(map[model.Item]int, res.Consumed)
	for _, stream := range streams {
		for _, it := range stream {
			seen[it]++
		}
	}

	var dupes, unknown []error
	distinct := 0
	for it, n := range seen {
		if !inRange(cfg, it) {
			res.Unknown += n
			unknown = appendCapped(unknown, func() error {
				return fmt.Errorf("%w: %s", ErrUnknownItem, it)
			})
			continue
		}
		distinct++
		if n > 1 {
			res.Duplicates += n - 1
			dupes = appendCapped(dupes, func() error {
				return fmt.Errorf("%w: %s seen %d times", ErrDuplicateItem, it, n)
			})
		}
	}

	// Only the first few missing items are listed, so the scan stops early.
	res.Missing = res.Expected - distinct
	var missing []error
	for p := 0; p < cfg.Producers && len(missing) < min(res.Missing, maxReported); p++ {
		for seq := 1; seq <= cfg.ItemsPerProducer && len(missing) < min(res.Missing, maxReported); seq++ {
			it := model.Item{Producer: p, Seq: seq}
			if seen[it] == 0 {
				missing = append(missing, fmt.Errorf("%w: %s", ErrMissingItem, it))
			}
		}
	}
	errs = append(errs, missing...)
	errs = append(errs, dupes...)
	errs = append(errs, unknown...)

	var order []error
	for i, stream := range streams {
		last := make(map[int]int)
		for pos, it := range stream {
			if prev, ok := last[it.Producer]; ok && it.Seq <= prev {
				res.OutOfOrder++
				order = appendCapped(order, func() error {
					return fmt.Errorf("%w: consumer %d position %d: %s after seq %d",
						ErrOutOfOrder, i, pos, it, prev)
				})
			}
			last[it.Producer] = it.Seq
		}
	}
	errs = append(errs, order...)

	if cfg.Producers == 1 && len(streams) == 1 {
		if err := checkExact(streams[0], cfg.ItemsPerProducer); err != nil {
			errs = append(errs, err)
		}
	}

	res.Err = errors.Join(errs...)
	return res
}

// checkExact compares positions only; count mismatches are reported by the
// multiset check.
func checkExact(stream []model.Item, n int) error {
	for i, it := range stream[:min(len(stream), n)] {
		if it.Producer != 0 || it.Seq != i+1 {
			return fmt.Errorf("%w: position %d holds %s, want p0#%d", ErrOutOfOrder, i, it, i+1)
		}
	}
	return nil
}

func inRange(cfg Config, it model.Item) bool {
	return it.Producer >= 0 && it.Producer < cfg.Producers &&
		it.Seq >= 1 && it.Seq <= cfg.ItemsPerProducer
}

// appendCapped builds the error only while fewer than maxReported are held.
func appendCapped(errs []error, build func() error) []error {
	if len(errs) >= maxReported {
		return errs
	}
	return append(errs, build())
}
