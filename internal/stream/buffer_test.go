package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferAccumulatesAndFlushes(t *testing.T) {
	var buf Buffer

	buf.Append("hello")
	buf.Append(" world")
	assert.Equal(t, "hello world", buf.Current())

	assert.Equal(t, "hello world", buf.Flush())
	assert.Equal(t, "", buf.Current())

	// Flushing an empty buffer returns the empty string.
	assert.Equal(t, "", buf.Flush())
}
