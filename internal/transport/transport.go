// Package transport defines the byte channels the MCP server speaks over.
// A transport carries framed messages and knows nothing about JSON-RPC
// semantics.
package transport

// Transport is a bidirectional framed message channel. ReadMessage blocks
// until a complete message is available; it returns io.EOF (possibly
// wrapped) when the peer has gone away. Implementations must allow
// WriteMessage to be called concurrently with ReadMessage, but callers
// serialize WriteMessage calls themselves or rely on the implementation's
// internal locking.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
