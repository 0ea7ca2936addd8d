package httputil

import "net/http"

// UserAgent identifies this client to the upstream API.
const UserAgent = "serpstat-mcp/1.0"

// RPCHeaders returns the headers for a JSON-RPC call. Export methods that
// answer with CSV ask for text/plain instead of JSON.
func RPCHeaders(csv bool) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if csv {
		h.Set("Accept", "text/plain")
	} else {
		h.Set("Accept", "application/json")
	}
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("User-Agent", UserAgent)
	return h
}
