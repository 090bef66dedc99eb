package types

import "encoding/json"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// RawSuccessEnvelope is the decode-side twin of SuccessEnvelope.
type RawSuccessEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
