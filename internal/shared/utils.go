// Package shared provides small helpers for handling user secrets in memory.
package shared

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Passwords read from the terminal are wiped this way once they have been
// sent to the server.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
