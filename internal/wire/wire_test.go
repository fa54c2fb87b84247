package wire

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
)

// pipeConn returns two connected protocol endpoints backed by net.Pipe.
// net.Pipe is synchronous, so peers run in goroutines.
func pipeConn() (*Conn, *Conn) {
	a, b := net.Pipe()
	return New(a), New(b)
}

func TestReadLineStripsNewline(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()
	defer remote.Close()

	go remote.WriteLine("uploadf a.txt ~quince/docs 12")

	line, err := local.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "uploadf a.txt ~quince/docs 12" {
		t.Errorf("got %q", line)
	}
}

func TestReadLineBlankLine(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()
	defer remote.Close()

	go func() {
		remote.WriteLine("")
		remote.WriteLine("next")
	}()

	line, err := local.ReadLine()
	if err != nil || line != "" {
		t.Fatalf("blank line: got %q, %v", line, err)
	}
	line, err = local.ReadLine()
	if err != nil || line != "next" {
		t.Fatalf("line after blank: got %q, %v", line, err)
	}
}

func TestReadLineEOF(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()

	go remote.Close()

	if _, err := local.ReadLine(); err != io.EOF {
		t.Errorf("clean close: got %v, want io.EOF", err)
	}
}

func TestReadLineMidLineClose(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()

	go func() {
		io.WriteString(remote.nc, "partial command")
		remote.Close()
	}()

	if _, err := local.ReadLine(); err != io.ErrUnexpectedEOF {
		t.Errorf("mid-line close: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"1234", 1234, true},
		{"  42  ", 42, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"12x", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseSize(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseSize(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseSize(%q): expected error", tc.in)
			} else if !errors.Is(err, ErrBadSize) {
				t.Errorf("ParseSize(%q): error %v is not ErrBadSize", tc.in, err)
			}
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()
	defer remote.Close()

	payload := strings.Repeat("quince", 1000)
	go func() {
		remote.WriteSize(int64(len(payload)))
		remote.SendN(strings.NewReader(payload), int64(len(payload)))
	}()

	size, err := local.ReadSize()
	if err != nil {
		t.Fatalf("ReadSize: %v", err)
	}
	var buf bytes.Buffer
	n, err := local.CopyN(&buf, size)
	if err != nil {
		t.Fatalf("CopyN: %v", err)
	}
	if n != int64(len(payload)) || buf.String() != payload {
		t.Errorf("payload corrupted: got %d bytes", n)
	}
}

// A drained payload must leave the stream positioned at the next command.
func TestDrainKeepsStreamInSync(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()
	defer remote.Close()

	go func() {
		remote.WriteLine("5")
		remote.SendN(strings.NewReader("xxxxx"), 5)
		remote.WriteLine("downlf ~quince/a.pdf")
	}()

	size, err := local.ReadSize()
	if err != nil {
		t.Fatalf("ReadSize: %v", err)
	}
	if err := local.Drain(size); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	line, err := local.ReadLine()
	if err != nil || line != "downlf ~quince/a.pdf" {
		t.Fatalf("line after drain: got %q, %v", line, err)
	}
}

// failingWriter accepts limit bytes and then fails, like a full disk.
type failingWriter struct {
	limit int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		n := w.limit
		w.limit = 0
		return n, errors.New("no space left on device")
	}
	w.limit -= len(p)
	return len(p), nil
}

// A destination failure is a *WriteError, not a session failure: the caller
// can drain the undelivered remainder and keep reading commands.
func TestCopyNWriteFailure(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()
	defer remote.Close()

	payload := strings.Repeat("a", 20000)
	go func() {
		remote.WriteSize(int64(len(payload)))
		remote.SendN(strings.NewReader(payload), int64(len(payload)))
		remote.WriteLine("LIST .")
	}()

	size, err := local.ReadSize()
	if err != nil {
		t.Fatalf("ReadSize: %v", err)
	}
	n, err := local.CopyN(&failingWriter{limit: 100}, size)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("got %v, want *WriteError", err)
	}
	if n <= 0 || n > size {
		t.Fatalf("consumed %d of %d", n, size)
	}
	if err := local.Drain(size - n); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	line, err := local.ReadLine()
	if err != nil || line != "LIST ." {
		t.Fatalf("line after failed copy: got %q, %v", line, err)
	}
}

func TestCopyNShortPayload(t *testing.T) {
	local, remote := pipeConn()
	defer local.Close()

	go func() {
		io.WriteString(remote.nc, "abc")
		remote.Close()
	}()

	n, err := local.CopyN(io.Discard, 10)
	if err != io.ErrUnexpectedEOF {
		t.Errorf("short payload: got %v after %d bytes, want io.ErrUnexpectedEOF", err, n)
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line, cmd, rest string
	}{
		{"uploadf a.c ~quince 3", "uploadf", "a.c ~quince 3"},
		{"dispfnames ~quince/docs", "dispfnames", "~quince/docs"},
		{"quit", "quit", ""},
		{"downlf   spaced", "downlf", "spaced"},
	}
	for _, tc := range cases {
		cmd, rest := SplitCommand(tc.line)
		if cmd != tc.cmd || rest != tc.rest {
			t.Errorf("SplitCommand(%q) = %q, %q; want %q, %q", tc.line, cmd, rest, tc.cmd, tc.rest)
		}
	}
}
