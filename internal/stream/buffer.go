// Package stream simulates token-by-token rendering of a generated
// output: a controller paces pre-chunked text through a coalescing
// buffer so render cadence is decoupled from chunk arrival.
package stream

import "strings"

// Buffer accumulates incoming text chunks until flushed. It has a
// single logical owner and is not safe for concurrent use.
type Buffer struct {
	sb strings.Builder
}

// Append adds a chunk to the buffer.
func (b *Buffer) Append(chunk string) {
	b.sb.WriteString(chunk)
}

// Flush returns everything accumulated and clears the buffer.
func (b *Buffer) Flush() string {
	out := b.sb.String()
	b.sb.Reset()
	return out
}

// Current peeks at the accumulated text without clearing it.
func (b *Buffer) Current() string {
	return b.sb.String()
}
