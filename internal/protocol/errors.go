package protocol

import "errors"

var (
	// ErrUnknownJobType is returned when encoding a request for a job type
	// that is not registered in the routing table
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrUnroutableMessage is returned when a consumed message's routing key
	// does not match any table entry
	ErrUnroutableMessage = errors.New("unroutable message")

	// ErrDuplicateRoutingKey is returned when two job types are registered
	// under the same request or response routing key
	ErrDuplicateRoutingKey = errors.New("duplicate routing key")
)
