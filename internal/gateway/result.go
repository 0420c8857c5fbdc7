package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies the outcome of one gateway call.
type Kind string

const (
	KindOK         Kind = "ok"
	KindBackend    Kind = "backend_error"
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection_error"
	KindMalformed  Kind = "malformed_response"
	KindTransport  Kind = "transport_error"
	KindRejected   Kind = "rejected"
)

// User-facing failure messages.
const (
	MsgTimeout          = "timeout: the server is taking too long to respond"
	MsgGatewayDown      = "connection error to gateway"
	MsgInvalidResponse  = "invalid response from server"
	MsgDirectNotAllowed = "direct request target is not a configured service"
)

var (
	ErrNotOK  = errors.New("gateway: result is not successful")
	ErrNoData = errors.New("gateway: response carries no data")
)

// Envelope is the gateway's uniform response body.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// Result is what every call returns. Failures are values, never errors.
type Result struct {
	Kind     Kind
	Status   int
	Envelope Envelope
}

// OK reports whether the backend answered with success=true.
func (r Result) OK() bool { return r.Kind == KindOK }

// Message is never empty for a failed result.
func (r Result) Message() string { return r.Envelope.Message }

// Decode unmarshals the data payload into v. It refuses failed results.
func (r Result) Decode(v any) error {
	if !r.OK() {
		return fmt.Errorf("%w: %s", ErrNotOK, r.Envelope.Message)
	}
	if len(r.Envelope.Data) == 0 || string(r.Envelope.Data) == "null" {
		return ErrNoData
	}
	if err := json.Unmarshal(r.Envelope.Data, v); err != nil {
		return fmt.Errorf("gateway: decode data: %w", err)
	}
	return nil
}

// Data returns the raw payload of a successful result and nil otherwise.
func (r Result) Data() json.RawMessage {
	if !r.OK() {
		return nil
	}
	return r.Envelope.Data
}

func failure(kind Kind, status int, msg string) Result {
	return Result{Kind: kind, Status: status, Envelope: Envelope{Success: false, Message: msg}}
}

// Malformed builds the result used when a payload fails to match its expected shape.
func Malformed(status int) Result {
	return failure(KindMalformed, status, MsgInvalidResponse)
}

// wireEnvelope distinguishes a missing success field from success=false.
type wireEnvelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func parseEnvelope(status int, body []byte) Result {
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err != nil || w.Success == nil {
		return Malformed(status)
	}
	env := Envelope{Success: *w.Success, Message: w.Message, Data: w.Data, Errors: w.Errors}
	if env.Success && status < 400 {
		return Result{Kind: KindOK, Status: status, Envelope: env}
	}
	env.Success = false
	env.Data = nil
	if env.Message == "" {
		env.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return Result{Kind: KindBackend, Status: status, Envelope: env}
}
