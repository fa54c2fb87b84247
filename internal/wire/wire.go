// Package wire implements the line-delimited command protocol spoken between
// clients, the gateway, and the storage nodes: newline-terminated ASCII
// command lines, and length-prefixed binary payloads (an ASCII decimal size
// line followed by exactly that many raw bytes).
//
// Every read goes through one buffered reader per connection, so payload
// bytes that were buffered while reading a command line are never lost. The
// drain discipline (consume a declared payload even when it cannot be used)
// is what keeps a persistent connection usable for the next command.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// MaxLineLen caps a single command line. Longer lines are truncated; the
// excess up to the newline is consumed so the stream stays in sync.
const MaxLineLen = 4096

// ErrBadSize is returned when a peer sends a size line that is not a
// non-negative decimal integer.
var ErrBadSize = errors.New("malformed size line")

// WriteError marks a payload copy that failed on the destination side (a full
// disk, a closed file) rather than on the connection. The stream itself is
// intact: the caller must drain the undelivered remainder of the declared
// payload before the session can continue.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "payload destination: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Conn wraps a network connection with the protocol's framing primitives.
// It is owned by exactly one session and is not safe for concurrent use.
type Conn struct {
	nc net.Conn
	br *bufio.Reader
}

// New wraps an established connection.
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc, br: bufio.NewReader(nc)}
}

// Dial connects to addr and wraps the resulting connection.
func Dial(addr string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(nc), nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Reader exposes the connection's buffered read side, for relaying a payload
// from one connection to another without bypassing the buffer.
func (c *Conn) Reader() io.Reader {
	return c.br
}

// ReadLine reads one newline-terminated line and returns it without the
// newline. An empty string with a nil error is a blank line, which callers
// ignore and re-read. io.EOF is returned only when the peer closed the
// connection before any byte of the line arrived; a close mid-line is
// io.ErrUnexpectedEOF.
func (c *Conn) ReadLine() (string, error) {
	line, err := c.br.ReadString('\n')
	if err != nil {
		if len(line) == 0 {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	line = strings.TrimSuffix(line, "\n")
	if len(line) > MaxLineLen {
		line = line[:MaxLineLen]
	}
	return line, nil
}

// WriteLine sends s followed by a newline.
func (c *Conn) WriteLine(s string) error {
	_, err := io.WriteString(c.nc, s+"\n")
	return err
}

// Writef formats and sends one line.
func (c *Conn) Writef(format string, args ...any) error {
	return c.WriteLine(fmt.Sprintf(format, args...))
}

// WriteSize sends a payload size line.
func (c *Conn) WriteSize(n int64) error {
	return c.WriteLine(strconv.FormatInt(n, 10))
}

// ReadSize reads a payload size line.
func (c *Conn) ReadSize() (int64, error) {
	line, err := c.ReadLine()
	if err != nil {
		return 0, err
	}
	return ParseSize(line)
}

// ParseSize parses an ASCII decimal size line.
func ParseSize(line string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadSize, line)
	}
	return n, nil
}

// CopyN reads exactly n payload bytes into dst and returns how many bytes
// were consumed from the connection, which can exceed what dst accepted. The
// two failure modes are distinct: a peer close before the full count is a
// hard session failure (io.ErrUnexpectedEOF, nothing left to drain), while a
// dst failure is reported as a *WriteError and leaves the stream intact with
// n minus the returned count still pending.
func (c *Conn) CopyN(dst io.Writer, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	buf := make([]byte, 32*1024)
	var consumed int64
	for consumed < n {
		chunk := int64(len(buf))
		if rem := n - consumed; rem < chunk {
			chunk = rem
		}
		rn, rerr := c.br.Read(buf[:chunk])
		if rn > 0 {
			consumed += int64(rn)
			wn, werr := dst.Write(buf[:rn])
			if werr == nil && wn < rn {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return consumed, &WriteError{Err: werr}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				rerr = io.ErrUnexpectedEOF
			}
			return consumed, rerr
		}
	}
	return consumed, nil
}

// Drain consumes and discards exactly n payload bytes. It is used when a
// declared payload cannot be delivered to its destination but must still be
// removed from the stream before the next command.
func (c *Conn) Drain(n int64) error {
	_, err := c.CopyN(io.Discard, n)
	return err
}

// SendN writes exactly n bytes from src to the connection.
func (c *Conn) SendN(src io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	written, err := io.CopyN(c.nc, src, n)
	if err != nil {
		return err
	}
	if written != n {
		return io.ErrShortWrite
	}
	return nil
}

// Send writes all of src to the connection.
func (c *Conn) Send(src io.Reader) (int64, error) {
	return io.Copy(c.nc, src)
}

// SplitCommand splits a command line into its name and the remainder of the
// line. The remainder may contain spaces; commands that take multiple
// arguments split it further themselves.
func SplitCommand(line string) (cmd, rest string) {
	cmd, rest, _ = strings.Cut(line, " ")
	return cmd, strings.TrimLeft(rest, " ")
}
