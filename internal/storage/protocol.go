package storage

// Simple JSON protocol for the store daemon over a Unix domain socket.
// Requests and responses are newline-delimited JSON, one response per request.

type Request struct {
	Op    string `json:"op"` // "get" | "set" | "remove" | "ping"
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Found bool   `json:"found,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}
