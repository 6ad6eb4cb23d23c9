package jrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbortToken(t *testing.T) {
	tok := NewAbortToken()
	assert.False(t, tok.Aborted())
	assert.True(t, tok.IsValid())

	tok.Abort()
	assert.True(t, tok.Aborted())
	assert.False(t, tok.IsValid())
}
