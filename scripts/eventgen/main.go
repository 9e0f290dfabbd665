// eventgen plays a fake worker fleet against cs-recv: it dials the
// computation and communication listeners and streams framed events.
package main

import (
	"CommSpectra/internal/model"
	"CommSpectra/internal/wire"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

type message struct {
	ts      time.Duration
	channel int
	length  int
	lost    bool
}

func main() {
	workAddr := flag.String("work", "127.0.0.1:8000", "computation listener address")
	commAddr := flag.String("comm", "127.0.0.1:9000", "communication listener address")
	workPeers := flag.Int("work-peers", 2, "number of computation connections")
	commPeers := flag.Int("comm-peers", 2, "number of communication connections (send/recv pairs)")
	channels := flag.Int("channels", 4, "number of dataflow channels")
	count := flag.Int("c", 1000, "number of messages to generate")
	span := flag.Duration("span", 30*time.Second, "logical time covered by the messages")
	loss := flag.Float64("loss", 0, "fraction of messages never received")
	batch := flag.Int("batch", 64, "records per frame")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	if *commPeers%2 != 0 {
		log.Fatalf("comm-peers must be even, got %d", *commPeers)
	}
	rng := rand.New(rand.NewSource(*seed))

	msgs := make([]message, *count)
	for i := range msgs {
		msgs[i] = message{
			ts:      time.Duration(rng.Int63n(int64(*span))),
			channel: rng.Intn(*channels),
			length:  rng.Intn(1400) + 50,
			lost:    rng.Float64() < *loss,
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ts < msgs[j].ts })
	log.Printf("Generated %d messages over %s on %d channels.", len(msgs), *span, *channels)

	var g errgroup.Group
	for w := 0; w < *workPeers; w++ {
		worker := w
		g.Go(func() error { return playCompute(*workAddr, worker, *channels) })
	}
	pairs := *commPeers / 2
	for p := 0; p < *commPeers; p++ {
		peer := p
		g.Go(func() error {
			// Even peers are send threads, odd peers their receive side.
			var mine []message
			for i, m := range msgs {
				if i%pairs == peer/2 {
					mine = append(mine, m)
				}
			}
			return playComm(*commAddr, peer/2, peer%2 == 0, mine, *batch)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Event generation failed: %v", err)
	}
	log.Println("All peers finished.")
}

func playCompute(addr string, worker, channels int) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	enc := wire.NewEncoder(conn, wire.Compute)
	recs := []model.ComputeRecord{
		{Worker: worker, Event: model.OperatesEvent{ID: 0, Addr: []int{0}, Name: "Input"}},
		{Worker: worker, Event: model.OperatesEvent{ID: 1, Addr: []int{1}, Name: "Exchange"}},
	}
	for c := 0; c < channels; c++ {
		recs = append(recs, model.ComputeRecord{
			Worker: worker,
			Event:  model.ChannelsEvent{ID: c, ScopeAddr: []int{0}, Source: model.Port{Node: 0, Port: c}, Target: model.Port{Node: 1, Port: c}},
		}, model.ComputeRecord{
			Worker: worker,
			Event:  model.CommChannelsEvent{Identifier: c, Kind: "Data"},
		})
	}
	if err := enc.WriteMessages(0, recs...); err != nil {
		return err
	}
	return enc.WriteProgress(wire.ProgressUpdate{Time: 0, Delta: -1})
}

func playComm(addr string, process int, sender bool, msgs []message, batch int) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	setup := model.CommSetup{Sender: sender, Process: process, Remote: process, HasRemote: true}
	enc := wire.NewEncoder(conn, wire.Comm)
	if err := enc.WriteMessages(0, model.CommRecord{Setup: setup, Event: model.StateEvent{Send: sender, Process: process, Remote: process, Start: true}}); err != nil {
		return err
	}

	var recs []model.CommRecord
	var frontier time.Duration
	flush := func() error {
		if len(recs) == 0 {
			return nil
		}
		t := recs[len(recs)-1].Time
		if err := enc.WriteMessages(t, recs...); err != nil {
			return err
		}
		recs = recs[:0]
		err := enc.WriteProgress(wire.ProgressUpdate{Time: frontier, Delta: -1}, wire.ProgressUpdate{Time: t, Delta: 1})
		frontier = t
		return err
	}
	for seq, m := range msgs {
		if !sender && m.lost {
			continue
		}
		recs = append(recs, model.CommRecord{
			Time:  m.ts,
			Setup: setup,
			Event: model.MessageEvent{IsSend: sender, Header: model.MessageHeader{
				Channel: m.channel, Source: process, Target: process, Length: m.length, SeqNo: seq,
			}},
		})
		if len(recs) >= batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return enc.WriteProgress(wire.ProgressUpdate{Time: frontier, Delta: -1})
}
