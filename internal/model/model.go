package model

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"time"
)

// ComputeRecord is one timestamped event from the computation stream.
// Worker is the index of the worker that logged the event.
type ComputeRecord struct {
	Time   time.Duration
	Worker int
	Event  ComputeEvent
}

// CommSetup identifies the communication thread that logged an event.
type CommSetup struct {
	// Sender is true for the sending side of a communication thread pair.
	Sender    bool
	Process   int
	Remote    int
	HasRemote bool
}

// CommRecord is one timestamped event from the communication stream.
type CommRecord struct {
	Time  time.Duration
	Setup CommSetup
	Event CommEvent
}

// Key identifies one aggregated cell: a channel within a time bucket.
type Key struct {
	Channel int           `json:"channel"`
	Bucket  time.Duration `json:"bucket"`
}

func (k Key) String() string {
	return fmt.Sprintf("(%d, %s)", k.Channel, k.Bucket)
}

// Hash is the FNV-1a hash of the key, used to pick shards.
func (k Key) Hash() uint32 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(k.Channel))
	binary.LittleEndian.PutUint64(b[8:], uint64(k.Bucket))
	hasher := fnv.New32a()
	hasher.Write(b[:])
	return hasher.Sum32()
}
