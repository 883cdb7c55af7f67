// Package protocol defines the wire contract between the front end and the
// worker daemon: JSON message bodies routed over a topic exchange, with the
// job type carried by the routing key and the reply destination carried in
// the message's reply_to property.
package protocol

import (
	"fmt"
	"sort"
)

// Route holds the pair of routing keys assigned to one job type.
type Route struct {
	RequestKey  string
	ResponseKey string
}

// Table maps job types to their routing keys and back. It is built once at
// startup and never mutated afterwards; the routing key is the sole dispatch
// discriminant, so both key spaces must be collision free.
type Table struct {
	routes        map[string]Route
	byRequestKey  map[string]string
	byResponseKey map[string]string
}

// NewTable builds a routing table from a job type to Route mapping.
// It rejects empty keys and routing keys shared between job types.
func NewTable(routes map[string]Route) (*Table, error) {
	t := &Table{
		routes:        make(map[string]Route, len(routes)),
		byRequestKey:  make(map[string]string, len(routes)),
		byResponseKey: make(map[string]string, len(routes)),
	}

	for jobType, route := range routes {
		if jobType == "" {
			return nil, fmt.Errorf("empty job type")
		}
		if route.RequestKey == "" || route.ResponseKey == "" {
			return nil, fmt.Errorf("job type %q: request and response routing keys are required", jobType)
		}
		if other, ok := t.byRequestKey[route.RequestKey]; ok {
			return nil, fmt.Errorf("%w: request key %q used by %q and %q",
				ErrDuplicateRoutingKey, route.RequestKey, other, jobType)
		}
		if other, ok := t.byResponseKey[route.ResponseKey]; ok {
			return nil, fmt.Errorf("%w: response key %q used by %q and %q",
				ErrDuplicateRoutingKey, route.ResponseKey, other, jobType)
		}

		t.routes[jobType] = route
		t.byRequestKey[route.RequestKey] = jobType
		t.byResponseKey[route.ResponseKey] = jobType
	}

	return t, nil
}

// Route returns the routing keys for a job type
func (t *Table) Route(jobType string) (Route, error) {
	route, ok := t.routes[jobType]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return route, nil
}

// JobTypeForRequestKey resolves a job type from a request routing key
func (t *Table) JobTypeForRequestKey(key string) (string, error) {
	jobType, ok := t.byRequestKey[key]
	if !ok {
		return "", fmt.Errorf("%w: no job type bound to request key %q", ErrUnroutableMessage, key)
	}
	return jobType, nil
}

// JobTypeForResponseKey resolves a job type from a response routing key
func (t *Table) JobTypeForResponseKey(key string) (string, error) {
	jobType, ok := t.byResponseKey[key]
	if !ok {
		return "", fmt.Errorf("%w: no job type bound to response key %q", ErrUnroutableMessage, key)
	}
	return jobType, nil
}

// JobTypes returns all registered job types, sorted
func (t *Table) JobTypes() []string {
	types := make([]string, 0, len(t.routes))
	for jobType := range t.routes {
		types = append(types, jobType)
	}
	sort.Strings(types)
	return types
}

// RequestKeys returns every request routing key. The dispatcher's queue must
// be bound under all of them.
func (t *Table) RequestKeys() []string {
	keys := make([]string, 0, len(t.routes))
	for _, jobType := range t.JobTypes() {
		keys = append(keys, t.routes[jobType].RequestKey)
	}
	return keys
}

// ResponseKeys returns every response routing key. The response consumer must
// be bound under all of them or responses for the missing job types are
// silently lost.
func (t *Table) ResponseKeys() []string {
	keys := make([]string, 0, len(t.routes))
	for _, jobType := range t.JobTypes() {
		keys = append(keys, t.routes[jobType].ResponseKey)
	}
	return keys
}
