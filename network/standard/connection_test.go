package standard

import (
	"io"
	"net"
	"testing"
	"time"

	errs "github.com/favbox/insaner/common/errors"
	"github.com/stretchr/testify/assert"
)

func TestConnReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	c := NewConn(server, 0)
	defer c.Close()

	go func() {
		_, _ = client.Write([]byte("GET / HTTP/1.1\r\n"))
	}()

	b, err := c.Peek(4)
	assert.Nil(t, err)
	assert.Equal(t, "GET ", string(b))
	assert.True(t, c.Len() >= 4)

	assert.Nil(t, c.Skip(4))
	ch, err := c.ReadByte()
	assert.Nil(t, err)
	assert.Equal(t, byte('/'), ch)

	p, err := c.ReadBinary(1)
	assert.Nil(t, err)
	assert.Equal(t, " ", string(p))
	assert.Nil(t, c.Release())

	go func() {
		_, _ = c.WriteBinary([]byte("pong"))
		_ = c.Flush()
	}()
	buf := make([]byte, 4)
	_, err = io.ReadFull(client, buf)
	assert.Nil(t, err)
	assert.Equal(t, "pong", string(buf))
}

func TestConnPeekTooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn(server, 0)

	go func() {
		_, _ = client.Write(make([]byte, minReadBufferSize+10))
	}()
	_, err := c.Peek(minReadBufferSize + 1)
	assert.ErrorIs(t, err, errs.ErrHeaderTooLarge)
}

func TestConnReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn(server, 0)

	assert.Nil(t, c.SetReadTimeout(20*time.Millisecond))
	_, err := c.Peek(1)
	assert.ErrorIs(t, err, errs.ErrTimeout)

	assert.ErrorIs(t, c.NormalizeError(net.ErrClosed), errs.ErrConnectionClosed)
	assert.True(t, c.HandleSpecificError(net.ErrClosed, "127.0.0.1"))
	assert.False(t, c.HandleSpecificError(io.ErrUnexpectedEOF, "127.0.0.1"))
}
