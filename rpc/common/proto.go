package common

import (
	"encoding/json"
	"time"
)

// --------------------------------------------------------------------------
// Envelope Structures
// --------------------------------------------------------------------------

// RequestEnvelope is the wire message published to a request topic.
// It wraps the caller's payload with the correlation id and the topic the
// reply must be published to.
type RequestEnvelope struct {
	CorrelationID string          `json:"correlationId"`
	ReplyTo       string          `json:"replyTo"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"` // advisory only
}

// ReplyEnvelope is the wire message published to the reply-to topic.
// Exactly one of Data and Error is meaningful: Data is null on failure and
// Error is null on success.
type ReplyEnvelope struct {
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
	Error         *string         `json:"error"`
	ProcessedAt   time.Time       `json:"processedAt"` // advisory only
}

// IsError returns true if the reply carries an application level error
func (r *ReplyEnvelope) IsError() bool {
	return r.Error != nil
}

// ErrorMessage returns the error message of the reply or an empty string
func (r *ReplyEnvelope) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// --------------------------------------------------------------------------
// Envelope Factory Functions
// --------------------------------------------------------------------------

// NewRequestEnvelope creates a new request envelope stamped with the current time
func NewRequestEnvelope(correlationID, replyTo string, data json.RawMessage) *RequestEnvelope {
	return &RequestEnvelope{
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Data:          data,
		Timestamp:     time.Now().UTC(),
	}
}

// NewSuccessReply creates a reply envelope carrying a success payload
func NewSuccessReply(correlationID string, data json.RawMessage) *ReplyEnvelope {
	return &ReplyEnvelope{
		CorrelationID: correlationID,
		Data:          data,
		ProcessedAt:   time.Now().UTC(),
	}
}

// NewErrorReply creates a reply envelope carrying an error message and no data
func NewErrorReply(correlationID string, message string) *ReplyEnvelope {
	return &ReplyEnvelope{
		CorrelationID: correlationID,
		Error:         &message,
		ProcessedAt:   time.Now().UTC(),
	}
}

// NewReply creates a success reply if err is nil, otherwise an error reply
func NewReply(correlationID string, data json.RawMessage, err error) *ReplyEnvelope {
	if err != nil {
		return NewErrorReply(correlationID, err.Error())
	}
	return NewSuccessReply(correlationID, data)
}
