package server

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"tombola/protocol"
)

const readChunkSize = 1024

var (
	batchPrefix = []byte("BATCH#")
	betPrefix   = []byte("BET#")
)

// recvMessage reads one logically complete message off a stream socket,
// tolerating short reads. A BATCH message is complete once its declared
// number of BET lines has arrived; anything else is complete at the first
// newline. A peer close terminates with whatever has been buffered.
func recvMessage(conn net.Conn) (string, error) {
	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if messageComplete(buf) {
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read from connection: %w", err)
		}
	}
	if len(buf) == 0 {
		return "", io.EOF
	}
	return strings.TrimRight(string(buf), " \t\r\n"), nil
}

func messageComplete(buf []byte) bool {
	if count, ok := batchHeaderCount(buf); ok {
		return betLineCount(buf) >= count
	}
	return bytes.IndexByte(buf, '\n') >= 0
}

// batchHeaderCount sniffs a complete, valid BATCH header off the buffer. An
// incomplete or invalid header reports false, which falls back to newline
// termination so the parser can reject the message.
func batchHeaderCount(buf []byte) (int, bool) {
	if !bytes.HasPrefix(buf, batchPrefix) {
		return 0, false
	}
	nl := bytes.IndexByte(buf, '\n')
	if nl < 0 {
		return 0, false
	}
	header := strings.TrimRight(string(buf[:nl]), "\r")
	tokens := protocol.SplitEscaped(header, protocol.Separator)
	if len(tokens) != 2 {
		return 0, false
	}
	count, err := strconv.Atoi(tokens[1])
	if err != nil || count < 0 {
		return 0, false
	}
	return count, true
}

// betLineCount counts the newline-terminated BET lines after the header. A
// trailing fragment is not counted: a bet is only in once its line terminator
// has arrived.
func betLineCount(buf []byte) int {
	nl := bytes.IndexByte(buf, '\n')
	lines := bytes.Split(buf[nl+1:], []byte{'\n'})
	count := 0
	for _, line := range lines[:len(lines)-1] {
		if bytes.HasPrefix(line, betPrefix) {
			count++
		}
	}
	return count
}

// sendMessage writes a complete message, tolerating short writes. A write
// that makes no progress is treated as a broken connection rather than
// looping forever.
func sendMessage(conn net.Conn, message string) error {
	data := []byte(message)
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		if err != nil {
			return fmt.Errorf("failed to write to connection: %w", err)
		}
		if n == 0 {
			return protocol.ErrConnectionBroken
		}
		total += n
	}
	return nil
}

// clientConn wraps an accepted connection so it is closed exactly once, no
// matter which of the handler, the draw drain or the shutdown sweep gets
// there first.
type clientConn struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

func newClientConn(conn net.Conn) *clientConn {
	return &clientConn{conn: conn}
}

// SendWinners writes a complete WINNERS response to the peer
func (c *clientConn) SendWinners(documents []string) error {
	return sendMessage(c.conn, protocol.SerializeWinners(documents))
}

// Close closes the underlying connection. Only the first call takes effect.
func (c *clientConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address for logging
func (c *clientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
