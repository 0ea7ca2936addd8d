package dispatch

import (
	"bytes"
	"encoding/json"

	"github.com/lukman83/serpstat-mcp/internal/rpc"
)

// Envelope codes raised by the dispatcher itself. Failures coming back from
// the RPC client keep their own codes.
const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeInternal         = rpc.CodeInternal
)

// Envelope is what a transport writes back to the caller. It is always well
// formed, success or failure.
type Envelope struct {
	Text    string
	IsError bool
	Code    string // empty on success
}

type errorBody struct {
	Success bool      `json:"success"`
	Error   errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope renders a failure as {"success":false,"error":{...}}.
func ErrorEnvelope(code, message string) Envelope {
	data, _ := json.MarshalIndent(errorBody{Error: errorInfo{Code: code, Message: message}}, "", "  ")
	return Envelope{Text: string(data), IsError: true, Code: code}
}

// successEnvelope pretty-prints a JSON payload or passes CSV text through.
func successEnvelope(res rpc.Result) Envelope {
	if res.Text != "" || len(res.Data) == 0 {
		return Envelope{Text: res.Text}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, res.Data, "", "  "); err != nil {
		return Envelope{Text: string(res.Data)}
	}
	return Envelope{Text: buf.String()}
}
