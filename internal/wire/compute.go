package wire

import (
	"errors"
	"fmt"

	"CommSpectra/internal/model"

	"google.golang.org/protobuf/encoding/protowire"
)

// Computation record layout:
//
//	Record       { 1: timestamp ns, 2: worker, one of 10..15 }
//	Operates     { 1: id, 2: addr packed, 3: name }
//	Channels     { 1: id, 2: scope_addr packed, 3: source_node, 4: source_port, 5: target_node, 6: target_port }
//	CommChannels { 1: identifier, 2: kind }
//	Schedule     { 1: id, 2: start }
//	Shutdown     { 1: id }
//	Text         { 1: text }
const (
	computeOperates     protowire.Number = 10
	computeChannels     protowire.Number = 11
	computeCommChannels protowire.Number = 12
	computeSchedule     protowire.Number = 13
	computeShutdown     protowire.Number = 14
	computeText         protowire.Number = 15
)

// Compute is the codec for computation streams.
var Compute RecordCodec[model.ComputeRecord] = computeCodec{}

type computeCodec struct{}

func (computeCodec) Stream() StreamKind { return ComputeStream }

func (computeCodec) ParseRecord(b []byte) (model.ComputeRecord, error) {
	var rec model.ComputeRecord
	events := 0
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			rec.Time, err = f.duration()
		case 2:
			rec.Worker, err = f.int()
		case computeOperates, computeChannels, computeCommChannels,
			computeSchedule, computeShutdown, computeText:
			events++
			rec.Event, err = parseComputeEvent(f)
		}
		return err
	})
	if err != nil {
		return rec, err
	}
	if events != 1 {
		return rec, fmt.Errorf("computation record carries %d known events, want exactly one", events)
	}
	return rec, nil
}

func parseComputeEvent(f field) (model.ComputeEvent, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	switch f.num {
	case computeOperates:
		var ev model.OperatesEvent
		err = walk(body, func(g field) error {
			var err error
			switch g.num {
			case 1:
				ev.ID, err = g.int()
			case 2:
				ev.Addr, err = g.ints(ev.Addr)
			case 3:
				ev.Name, err = g.string()
			}
			return err
		})
		return ev, err
	case computeChannels:
		var ev model.ChannelsEvent
		err = walk(body, func(g field) error {
			var err error
			switch g.num {
			case 1:
				ev.ID, err = g.int()
			case 2:
				ev.ScopeAddr, err = g.ints(ev.ScopeAddr)
			case 3:
				ev.Source.Node, err = g.int()
			case 4:
				ev.Source.Port, err = g.int()
			case 5:
				ev.Target.Node, err = g.int()
			case 6:
				ev.Target.Port, err = g.int()
			}
			return err
		})
		return ev, err
	case computeCommChannels:
		var ev model.CommChannelsEvent
		err = walk(body, func(g field) error {
			var err error
			switch g.num {
			case 1:
				ev.Identifier, err = g.int()
			case 2:
				ev.Kind, err = g.string()
			}
			return err
		})
		return ev, err
	case computeSchedule:
		var ev model.ScheduleEvent
		err = walk(body, func(g field) error {
			var err error
			switch g.num {
			case 1:
				ev.ID, err = g.int()
			case 2:
				ev.Start, err = g.bool()
			}
			return err
		})
		return ev, err
	case computeShutdown:
		var ev model.ShutdownEvent
		err = walk(body, func(g field) error {
			var err error
			if g.num == 1 {
				ev.ID, err = g.int()
			}
			return err
		})
		return ev, err
	case computeText:
		var ev model.TextEvent
		err = walk(body, func(g field) error {
			var err error
			if g.num == 1 {
				ev.Text, err = g.string()
			}
			return err
		})
		return ev, err
	}
	return nil, fmt.Errorf("unknown computation event field %d", f.num)
}

func (computeCodec) AppendRecord(b []byte, rec model.ComputeRecord) ([]byte, error) {
	if rec.Time < 0 {
		return b, fmt.Errorf("negative record time %s", rec.Time)
	}
	if err := checkNonNegative("worker", rec.Worker); err != nil {
		return b, err
	}

	var inner []byte
	var num protowire.Number
	switch ev := rec.Event.(type) {
	case model.OperatesEvent:
		num = computeOperates
		if err := checkNonNegative("operator id and address", append([]int{ev.ID}, ev.Addr...)...); err != nil {
			return b, err
		}
		inner = appendIntField(inner, 1, ev.ID)
		inner = appendPackedInts(inner, 2, ev.Addr)
		inner = appendStringField(inner, 3, ev.Name)
	case model.ChannelsEvent:
		num = computeChannels
		if err := checkNonNegative("channel fields", append([]int{ev.ID, ev.Source.Node, ev.Source.Port, ev.Target.Node, ev.Target.Port}, ev.ScopeAddr...)...); err != nil {
			return b, err
		}
		inner = appendIntField(inner, 1, ev.ID)
		inner = appendPackedInts(inner, 2, ev.ScopeAddr)
		inner = appendIntField(inner, 3, ev.Source.Node)
		inner = appendIntField(inner, 4, ev.Source.Port)
		inner = appendIntField(inner, 5, ev.Target.Node)
		inner = appendIntField(inner, 6, ev.Target.Port)
	case model.CommChannelsEvent:
		num = computeCommChannels
		if err := checkNonNegative("comm channel identifier", ev.Identifier); err != nil {
			return b, err
		}
		inner = appendIntField(inner, 1, ev.Identifier)
		inner = appendStringField(inner, 2, ev.Kind)
	case model.ScheduleEvent:
		num = computeSchedule
		if err := checkNonNegative("operator id", ev.ID); err != nil {
			return b, err
		}
		inner = appendIntField(inner, 1, ev.ID)
		inner = appendBoolField(inner, 2, ev.Start)
	case model.ShutdownEvent:
		num = computeShutdown
		if err := checkNonNegative("operator id", ev.ID); err != nil {
			return b, err
		}
		inner = appendIntField(inner, 1, ev.ID)
	case model.TextEvent:
		num = computeText
		inner = appendStringField(inner, 1, ev.Text)
	case nil:
		return b, errors.New("computation record has no event")
	default:
		return b, fmt.Errorf("unsupported computation event %T", ev)
	}

	b = appendVarintField(b, 1, uint64(rec.Time))
	b = appendIntField(b, 2, rec.Worker)
	return appendMessageField(b, num, inner), nil
}
