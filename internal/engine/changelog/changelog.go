// Package changelog keeps running totals of signed deltas and reports every
// change to them as an (old, new) pair.
package changelog

import (
	"time"

	"CommSpectra/internal/engine/bucket"
	"CommSpectra/internal/model"
)

// Delta adds Weight to the total of Key.
type Delta struct {
	Key    model.Key
	Weight int64
}

// Update is one change to a running total.
type Update struct {
	Key model.Key
	Old int64
	New int64
}

// Count holds the running total per key. Totals that return to zero are
// kept, so a later change still reports the correct old value.
type Count struct {
	totals map[model.Key]int64
}

func NewCount() *Count {
	return &Count{totals: make(map[model.Key]int64)}
}

// Apply adds a batch of deltas and returns one update per key whose total
// changed, in order of first appearance in the batch. Deltas for the same key
// are consolidated, so a batch that nets out to zero for a key reports nothing
// for it. Work is proportional to the number of deltas.
func (c *Count) Apply(deltas []Delta) []Update {
	if len(deltas) == 0 {
		return nil
	}
	old := make(map[model.Key]int64, len(deltas))
	var order []model.Key
	for _, d := range deltas {
		if _, seen := old[d.Key]; !seen {
			old[d.Key] = c.totals[d.Key]
			order = append(order, d.Key)
		}
		c.totals[d.Key] += d.Weight
	}

	var updates []Update
	for _, k := range order {
		if n := c.totals[k]; n != old[k] {
			updates = append(updates, Update{Key: k, Old: old[k], New: n})
		}
	}
	return updates
}

// Get returns the current total for k.
func (c *Count) Get(k model.Key) int64 {
	return c.totals[k]
}

// Len is the number of keys ever touched.
func (c *Count) Len() int {
	return len(c.totals)
}

// Changes converts updates back into the deltas that caused them.
func Changes(updates []Update) []Delta {
	deltas := make([]Delta, 0, len(updates))
	for _, u := range updates {
		deltas = append(deltas, Delta{Key: u.Key, Weight: u.New - u.Old})
	}
	return deltas
}

// Negate flips the sign of every weight.
func Negate(deltas []Delta) []Delta {
	out := make([]Delta, len(deltas))
	for i, d := range deltas {
		out[i] = Delta{Key: d.Key, Weight: -d.Weight}
	}
	return out
}

// Difference tracks S - R for two counts S and R by feeding it their
// updates: S's changes as they are, R's negated, summed by a third count.
type Difference struct {
	count *Count
}

func NewDifference() *Difference {
	return &Difference{count: NewCount()}
}

// Apply folds in the updates both counts produced for one batch.
func (d *Difference) Apply(sends, recvs []Update) []Update {
	deltas := append(Changes(sends), Negate(Changes(recvs))...)
	return d.count.Apply(deltas)
}

// Get returns the current difference for k.
func (d *Difference) Get(k model.Key) int64 {
	return d.count.Get(k)
}

// Direction says which side of a channel logged a message.
type Direction int

const (
	Send Direction = iota
	Recv
)

// Category is the report category of counts in this direction.
func (d Direction) Category() model.Category {
	if d == Send {
		return model.CategorySend
	}
	return model.CategoryRecv
}

func (d Direction) String() string {
	return string(d.Category())
}

// Split turns a communication record into a delta for the count of its
// direction. Only message events carry volume; ok is false otherwise.
// The direction comes from the logging thread, not the message.
func Split(rec model.CommRecord, granularity time.Duration) (dir Direction, delta Delta, ok bool) {
	msg, isMsg := rec.Event.(model.MessageEvent)
	if !isMsg {
		return dir, delta, false
	}
	if rec.Setup.Sender {
		dir = Send
	} else {
		dir = Recv
	}
	return dir, Delta{
		Key:    model.Key{Channel: msg.Header.Channel, Bucket: bucket.Of(rec.Time, granularity)},
		Weight: int64(msg.Header.Length),
	}, true
}
