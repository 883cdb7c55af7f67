package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ContentType is the wire content type of every message body
const ContentType = "application/json"

// FailureKey is the single key present in a failure payload. Success payloads
// must carry at least one job-type-specific key that failure payloads never
// do; consumers distinguish the two by key presence, not by a status field.
const FailureKey = "response"

// Request is a decoded job request. ReplyTo is opaque to the protocol and is
// only ever echoed back on the response.
type Request struct {
	JobType string
	Body    map[string]interface{}
	ReplyTo string
}

// Response is a decoded job response
type Response struct {
	JobType string
	Body    map[string]interface{}
	ReplyTo string
}

// FailureBody builds the uniform failure payload sent in place of a result
// when a job function fails.
func FailureBody(message string) map[string]interface{} {
	return map[string]interface{}{FailureKey: message}
}

// IsFailure reports whether a response body is the uniform failure payload
func IsFailure(body map[string]interface{}) bool {
	_, ok := body[FailureKey]
	return ok
}

// EncodeRequest serializes a job request for publishing. It returns the
// request routing key for the job type and a persistent message carrying the
// JSON body with reply_to set to the caller's destination.
func (t *Table) EncodeRequest(jobType string, body map[string]interface{}, replyTo string) (string, amqp.Publishing, error) {
	route, err := t.Route(jobType)
	if err != nil {
		return "", amqp.Publishing{}, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to encode request body: %w", err)
	}

	return route.RequestKey, amqp.Publishing{
		ContentType:  ContentType,
		MessageId:    uuid.NewString(),
		Body:         payload,
		ReplyTo:      replyTo,
		DeliveryMode: amqp.Persistent,
	}, nil
}

// DecodeRequest is the inverse of EncodeRequest. The job type is resolved
// from the delivery's routing key, never from the body.
func (t *Table) DecodeRequest(d amqp.Delivery) (*Request, error) {
	jobType, err := t.JobTypeForRequestKey(d.RoutingKey)
	if err != nil {
		return nil, err
	}

	var body map[string]interface{}
	if err := json.Unmarshal(d.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode request body for %q: %w", jobType, err)
	}

	return &Request{
		JobType: jobType,
		Body:    body,
		ReplyTo: d.ReplyTo,
	}, nil
}

// EncodeResponse serializes a job response for publishing under the job
// type's response routing key. ReplyTo must be the request's reply_to,
// copied verbatim.
func (t *Table) EncodeResponse(jobType string, body map[string]interface{}, replyTo string) (string, amqp.Publishing, error) {
	route, err := t.Route(jobType)
	if err != nil {
		return "", amqp.Publishing{}, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to encode response body: %w", err)
	}

	return route.ResponseKey, amqp.Publishing{
		ContentType:  ContentType,
		MessageId:    uuid.NewString(),
		Body:         payload,
		ReplyTo:      replyTo,
		DeliveryMode: amqp.Persistent,
	}, nil
}

// DecodeResponse is the inverse of EncodeResponse, keyed by the response
// routing key.
func (t *Table) DecodeResponse(d amqp.Delivery) (*Response, error) {
	jobType, err := t.JobTypeForResponseKey(d.RoutingKey)
	if err != nil {
		return nil, err
	}

	var body map[string]interface{}
	if err := json.Unmarshal(d.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode response body for %q: %w", jobType, err)
	}

	return &Response{
		JobType: jobType,
		Body:    body,
		ReplyTo: d.ReplyTo,
	}, nil
}
