package wsserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePongRotatesExpectedContent(t *testing.T) {
	c := &ClientRecord{}
	c.ping.expectedContent = []byte("token")

	l := newLivenessManager()
	l.handlePong(c, []byte("token"))

	assert.Nil(t, c.ping.expectedContent)
}

func TestHandlePongIgnoresMismatch(t *testing.T) {
	c := &ClientRecord{}
	c.ping.expectedContent = []byte("token")

	l := newLivenessManager()
	l.handlePong(c, []byte("other"))

	assert.Equal(t, []byte("token"), c.ping.expectedContent)
}

func TestCancelTimersIsSafeWithoutTimers(t *testing.T) {
	c := &ClientRecord{}
	c.cancelTimers()
}
