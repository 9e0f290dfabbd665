// Package report keeps the latest published value of every report so it
// can be queried while the pipeline runs.
package report

import (
	"log"
	"sort"
	"sync"

	"CommSpectra/internal/model"
)

const defaultShardCount = 64

// entry identifies a report. Topology declarations sharing an id and bucket
// are kept apart by their subject.
type entry struct {
	category model.Category
	key      model.Key
	subject  string
}

func entryOf(r model.Report) entry {
	e := entry{category: r.Category, key: r.Key}
	if !r.Category.IsCount() {
		e.subject = r.Subject
	}
	return e
}

type shard struct {
	mu      sync.RWMutex
	reports map[entry]model.Report
}

// Board holds the latest report per (category, key) in a sharded map.
// It is safe for concurrent use.
type Board struct {
	shards     []*shard
	shardCount uint32
}

// NewBoard creates a board with numShards shards.
func NewBoard(numShards uint32) *Board {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	b := &Board{
		shards:     make([]*shard, numShards),
		shardCount: numShards,
	}
	for i := range b.shards {
		b.shards[i] = &shard{reports: make(map[entry]model.Report)}
	}
	return b
}

// Apply records a report. Counts replace the previous value; topology
// declarations accumulate their diffs into Value.
func (b *Board) Apply(r model.Report) {
	e := entryOf(r)
	s := b.getShard(r.Key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.Category.IsCount() {
		prev := s.reports[e]
		r.Value = prev.Value + r.Diff
	}
	s.reports[e] = r
}

// Get returns the latest count report for category and key.
func (b *Board) Get(category model.Category, key model.Key) (model.Report, bool) {
	s := b.getShard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[entry{category: category, key: key}]
	return r, ok
}

// Declared returns the topology declarations recorded under key, sorted by
// subject.
func (b *Board) Declared(category model.Category, key model.Key) []model.Report {
	s := b.getShard(key)
	s.mu.RLock()
	var out []model.Report
	for e, r := range s.reports {
		if e.category == category && e.key == key {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// Snapshot returns a copy of every report in category, sorted by bucket,
// channel and subject.
func (b *Board) Snapshot(category model.Category) []model.Report {
	var out []model.Report
	for _, s := range b.shards {
		s.mu.RLock()
		for e, r := range s.reports {
			if e.category == category {
				out = append(out, r)
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Bucket != out[j].Key.Bucket {
			return out[i].Key.Bucket < out[j].Key.Bucket
		}
		if out[i].Key.Channel != out[j].Key.Channel {
			return out[i].Key.Channel < out[j].Key.Channel
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// Len returns the number of reports held.
func (b *Board) Len() int {
	n := 0
	for _, s := range b.shards {
		s.mu.RLock()
		n += len(s.reports)
		s.mu.RUnlock()
	}
	return n
}

// Emit records r. The manager registers the board as its first sink.
func (b *Board) Emit(r model.Report) error {
	b.Apply(r)
	return nil
}

// Close implements model.Sink.
func (b *Board) Close() error {
	log.Printf("Board closed holding %d reports.", b.Len())
	return nil
}

func (b *Board) getShard(key model.Key) *shard {
	return b.shards[key.Hash()%b.shardCount]
}
