// Package idgen produces the identifiers sitecap stamps on requests and
// capture runs.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short and URL-safe; used for per-request trace IDs.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so run IDs order by start time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// RunID identifies one capture pipeline run.
var RunID Generator = Prefixed("run_", UUIDv7())

// TraceID identifies one inbound HTTP request.
var TraceID Generator = NanoID(8)
