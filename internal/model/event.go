package model

import "fmt"

// ComputeEvent is the closed set of structural events found on the
// computation stream. Only types in this file implement it.
type ComputeEvent interface {
	computeEvent()
}

// CommEvent is the closed set of events found on the communication stream.
type CommEvent interface {
	commEvent()
}

// Port is an operator port inside a dataflow scope.
type Port struct {
	Node int
	Port int
}

// OperatesEvent declares an operator.
type OperatesEvent struct {
	ID   int
	Addr []int
	Name string
}

// ChannelsEvent declares a logical channel between two operator ports.
type ChannelsEvent struct {
	ID        int
	ScopeAddr []int
	Source    Port
	Target    Port
}

// CommChannelsEvent declares a physical communication channel.
type CommChannelsEvent struct {
	Identifier int
	Kind       string
}

// ScheduleEvent marks an operator starting or stopping a scheduling slice.
type ScheduleEvent struct {
	ID    int
	Start bool
}

// ShutdownEvent marks an operator shutting down.
type ShutdownEvent struct {
	ID int
}

// TextEvent is free-form text logged by a worker.
type TextEvent struct {
	Text string
}

func (OperatesEvent) computeEvent()     {}
func (ChannelsEvent) computeEvent()     {}
func (CommChannelsEvent) computeEvent() {}
func (ScheduleEvent) computeEvent()     {}
func (ShutdownEvent) computeEvent()     {}
func (TextEvent) computeEvent()         {}

func (e ChannelsEvent) String() string {
	return fmt.Sprintf("channel %d scope %v (%d,%d)->(%d,%d)",
		e.ID, e.ScopeAddr, e.Source.Node, e.Source.Port, e.Target.Node, e.Target.Port)
}

func (e CommChannelsEvent) String() string {
	return fmt.Sprintf("comm channel %d %s", e.Identifier, e.Kind)
}

// MessageHeader describes one message moved by the communication layer.
type MessageHeader struct {
	Channel int
	Source  int
	Target  int
	Length  int
	SeqNo   int
}

// MessageEvent records a message being sent or received.
type MessageEvent struct {
	IsSend bool
	Header MessageHeader
}

// StateEvent records a communication thread starting or stopping.
type StateEvent struct {
	Send    bool
	Process int
	Remote  int
	Start   bool
}

func (MessageEvent) commEvent() {}
func (StateEvent) commEvent()   {}
