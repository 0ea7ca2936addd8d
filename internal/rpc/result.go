package rpc

import (
	"encoding/json"
	"errors"
)

// Error codes produced by the client itself. Upstream application errors
// carry whatever code the API returned.
const (
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeAPIRequestFailed  = "API_REQUEST_FAILED"
	CodeHTTPError         = "HTTP_ERROR"
	CodeRequestCancelled  = "REQUEST_CANCELLED"
	CodeDecodeError       = "DECODE_ERROR"
	CodeBodyTooLarge      = "BODY_TOO_LARGE"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrMissingCredential is returned by New when no API key is configured.
var ErrMissingCredential = errors.New("serpstat API key is not configured")

const fallbackMessage = "upstream request failed"

// Error is a normalized failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Result is the outcome of one Invoke. Exactly one of Data and Text is set
// on success: Data for JSON bodies, Text for plain-text (CSV) exports.
type Result struct {
	Success     bool
	Data        json.RawMessage
	Text        string
	CreditsUsed *int
	RequestID   string
	Attempts    int
	Error       *Error
}

// Err returns the failure as an error value, or nil on success.
func (r Result) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return r.Error
}

func failure(code, message string, details any) Result {
	return Result{Error: &Error{Code: code, Message: message, Details: details}}
}

// wireRequest is the JSON-RPC body.
type wireRequest struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// wireResponse picks out the envelope fields the client inspects; the body
// itself is passed through untouched. Members are kept raw so a malformed
// sibling never hides the error member.
type wireResponse map[string]json.RawMessage

// decodeResponse reports whether body is a JSON object and returns its members.
func decodeResponse(body []byte) (wireResponse, bool) {
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}
	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, false
	}
	return wr, true
}

// creditsUsed returns the credits_used member, or nil when absent or not a number.
func (wr wireResponse) creditsUsed() *int {
	raw, ok := wr["credits_used"]
	if !ok || !hasValue(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return credits(f)
}

type wireError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// upstreamError converts the "error" member of a response body. Codes may be
// strings or numbers and are rendered as strings.
func upstreamError(raw json.RawMessage) *Error {
	var msg string
	if json.Unmarshal(raw, &msg) == nil {
		if msg == "" {
			msg = fallbackMessage
		}
		return &Error{Code: CodeUpstreamError, Message: msg, Details: raw}
	}

	var we wireError
	if err := json.Unmarshal(raw, &we); err != nil {
		return &Error{Code: CodeUpstreamError, Message: fallbackMessage, Details: raw}
	}

	e := &Error{Code: renderCode(we.Code), Message: we.Message, Details: raw}
	if e.Message == "" {
		e.Message = fallbackMessage
	}
	if hasValue(we.Data) {
		e.Details = we.Data
	}
	return e
}

func renderCode(raw json.RawMessage) string {
	if !hasValue(raw) {
		return CodeUpstreamError
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return CodeUpstreamError
		}
		return s
	}
	return string(raw)
}

func renderID(raw json.RawMessage) string {
	if !hasValue(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
