package config

import (
	"CommSpectra/internal/engine/bucket"
	"fmt"
	"strconv"
	"time"
)

// StartupConfigError reports a missing or malformed positional argument.
type StartupConfigError struct {
	Arg    string
	Value  string
	Reason string
}

func (e *StartupConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Arg, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Arg, e.Value, e.Reason)
}

// Args are the positional startup arguments.
type Args struct {
	WorkPeers   int
	CommPeers   int
	Granularity time.Duration
}

// ParseArgs parses `work_peer_count comm_peer_count granularity_seconds`.
// There are no defaults: every argument is required.
func ParseArgs(args []string) (Args, error) {
	workPeers, err := uintArg(args, 0, "work_peer_count",
		"must provide number of source peers", "source peers must be an unsigned integer")
	if err != nil {
		return Args{}, err
	}
	commPeers, err := uintArg(args, 1, "comm_peer_count",
		"must provide number of comm peers", "comm peers must be an unsigned integer")
	if err != nil {
		return Args{}, err
	}
	seconds, err := uintArg(args, 2, "granularity_seconds",
		"must provide report granularity in seconds", "granularity must be an unsigned integer")
	if err != nil {
		return Args{}, err
	}
	if seconds == 0 {
		return Args{}, &StartupConfigError{Arg: "granularity_seconds", Value: args[2], Reason: "granularity must be positive"}
	}

	return Args{
		WorkPeers:   int(workPeers),
		CommPeers:   int(commPeers),
		Granularity: bucket.Seconds(seconds),
	}, nil
}

func uintArg(args []string, i int, name, missing, malformed string) (uint64, error) {
	if i >= len(args) {
		return 0, &StartupConfigError{Arg: name, Reason: missing}
	}
	// Bounded so that the peer counts fit an int and granularity fits a Duration.
	v, err := strconv.ParseUint(args[i], 10, 31)
	if err != nil {
		return 0, &StartupConfigError{Arg: name, Value: args[i], Reason: malformed}
	}
	return v, nil
}
