package wire

import (
	"errors"
	"fmt"

	"CommSpectra/internal/model"

	"google.golang.org/protobuf/encoding/protowire"
)

// Communication record layout:
//
//	Record  { 1: timestamp ns, 2: setup, one of 10..11 }
//	Setup   { 1: sender, 2: process, 3: remote (absent when none) }
//	Message { 1: is_send, 2: header }
//	Header  { 1: channel, 2: source, 3: target, 4: length, 5: seqno }
//	State   { 1: send, 2: process, 3: remote, 4: start }
const (
	commSetup   protowire.Number = 2
	commMessage protowire.Number = 10
	commState   protowire.Number = 11
)

// Comm is the codec for communication streams.
var Comm RecordCodec[model.CommRecord] = commCodec{}

type commCodec struct{}

func (commCodec) Stream() StreamKind { return CommStream }

func (commCodec) ParseRecord(b []byte) (model.CommRecord, error) {
	var rec model.CommRecord
	events := 0
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			rec.Time, err = f.duration()
		case commSetup:
			rec.Setup, err = parseSetup(f)
		case commMessage:
			events++
			rec.Event, err = parseMessage(f)
		case commState:
			events++
			rec.Event, err = parseState(f)
		}
		return err
	})
	if err != nil {
		return rec, err
	}
	if events != 1 {
		return rec, fmt.Errorf("communication record carries %d known events, want exactly one", events)
	}
	return rec, nil
}

func parseSetup(f field) (model.CommSetup, error) {
	var s model.CommSetup
	body, err := f.bytes()
	if err != nil {
		return s, err
	}
	err = walk(body, func(g field) error {
		var err error
		switch g.num {
		case 1:
			s.Sender, err = g.bool()
		case 2:
			s.Process, err = g.int()
		case 3:
			s.Remote, err = g.int()
			s.HasRemote = true
		}
		return err
	})
	return s, err
}

func parseMessage(f field) (model.CommEvent, error) {
	var ev model.MessageEvent
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	err = walk(body, func(g field) error {
		switch g.num {
		case 1:
			var err error
			ev.IsSend, err = g.bool()
			return err
		case 2:
			hb, err := g.bytes()
			if err != nil {
				return err
			}
			return walk(hb, func(h field) error {
				var err error
				switch h.num {
				case 1:
					ev.Header.Channel, err = h.int()
				case 2:
					ev.Header.Source, err = h.int()
				case 3:
					ev.Header.Target, err = h.int()
				case 4:
					ev.Header.Length, err = h.int()
				case 5:
					ev.Header.SeqNo, err = h.int()
				}
				return err
			})
		}
		return nil
	})
	return ev, err
}

func parseState(f field) (model.CommEvent, error) {
	var ev model.StateEvent
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	err = walk(body, func(g field) error {
		var err error
		switch g.num {
		case 1:
			ev.Send, err = g.bool()
		case 2:
			ev.Process, err = g.int()
		case 3:
			ev.Remote, err = g.int()
		case 4:
			ev.Start, err = g.bool()
		}
		return err
	})
	return ev, err
}

func (commCodec) AppendRecord(b []byte, rec model.CommRecord) ([]byte, error) {
	if rec.Time < 0 {
		return b, fmt.Errorf("negative record time %s", rec.Time)
	}
	if err := checkNonNegative("setup process and remote", rec.Setup.Process, rec.Setup.Remote); err != nil {
		return b, err
	}

	var inner []byte
	var num protowire.Number
	switch ev := rec.Event.(type) {
	case model.MessageEvent:
		num = commMessage
		h := ev.Header
		if err := checkNonNegative("message header", h.Channel, h.Source, h.Target, h.Length, h.SeqNo); err != nil {
			return b, err
		}
		var hb []byte
		hb = appendIntField(hb, 1, h.Channel)
		hb = appendIntField(hb, 2, h.Source)
		hb = appendIntField(hb, 3, h.Target)
		hb = appendIntField(hb, 4, h.Length)
		hb = appendIntField(hb, 5, h.SeqNo)
		inner = appendBoolField(inner, 1, ev.IsSend)
		inner = appendMessageField(inner, 2, hb)
	case model.StateEvent:
		num = commState
		if err := checkNonNegative("state process and remote", ev.Process, ev.Remote); err != nil {
			return b, err
		}
		inner = appendBoolField(inner, 1, ev.Send)
		inner = appendIntField(inner, 2, ev.Process)
		inner = appendIntField(inner, 3, ev.Remote)
		inner = appendBoolField(inner, 4, ev.Start)
	case nil:
		return b, errors.New("communication record has no event")
	default:
		return b, fmt.Errorf("unsupported communication event %T", ev)
	}

	var setup []byte
	setup = appendBoolField(setup, 1, rec.Setup.Sender)
	setup = appendIntField(setup, 2, rec.Setup.Process)
	if rec.Setup.HasRemote {
		setup = appendIntField(setup, 3, rec.Setup.Remote)
	}

	b = appendVarintField(b, 1, uint64(rec.Time))
	b = appendMessageField(b, commSetup, setup)
	return appendMessageField(b, num, inner), nil
}
