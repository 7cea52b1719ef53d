// Package codec centralizes JSON encoding of documents and API payloads.
//
// Post documents stored by the SQL backends are encoded with Default, so
// changing the default codec must keep the wire format compatible.
package codec

// Codec encodes and decodes documents.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}
