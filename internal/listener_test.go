package internal

import (
	"testing"

	"github.com/niclashoyer/rtltcp/xsdr"
	"github.com/stretchr/testify/assert"
)

func TestWIDGenerator(t *testing.T) {
	t.Parallel()

	tcp := NewWIDGenerator(xsdr.NetKindTCP)
	kcp := NewWIDGenerator(xsdr.NetKindKCP)

	assert.Equal(t, uint64(1<<4), tcp.Next())
	assert.Equal(t, uint64(2<<4), tcp.Next())
	assert.Equal(t, uint64(1<<4|2), kcp.Next())
}
