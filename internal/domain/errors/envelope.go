package errors

import "encoding/json"

// ErrorBody is the inner object of the wire envelope.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Envelope is the wire format for every failure: {"error":{...}}.
// The mutation engine persists it verbatim onto failed transactions so that
// replays return byte-identical bodies.
type Envelope struct {
	Error ErrorBody `json:"error"`
}

// ToEnvelope renders the error as its wire envelope.
func (e *AppError) ToEnvelope() Envelope {
	return Envelope{Error: ErrorBody{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}}
}

// MarshalEnvelope renders the envelope as JSON.
func (e *AppError) MarshalEnvelope() json.RawMessage {
	data, err := json.Marshal(e.ToEnvelope())
	if err != nil {
		// The envelope is marshal-safe by construction; this path would mean
		// a detail value that cannot be serialized.
		return json.RawMessage(`{"error":{"code":"` + CodeInternal + `","message":"failed to render error"}}`)
	}
	return data
}
