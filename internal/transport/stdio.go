package transport

import (
	"bufio"
	"io"
	"sync"

	"mcp-tool-server/pkg/errors"
)

// maxLineSize bounds a single inbound message (10MB)
const maxLineSize = 10 * 1024 * 1024

// StdioTransport frames messages as newline-delimited JSON over an
// io.Reader/io.Writer pair, typically stdin and stdout. Writes are
// serialized with a mutex so concurrent request handlers never
// interleave message bytes.
type StdioTransport struct {
	reader    *bufio.Scanner
	writer    io.Writer
	writeMu   sync.Mutex
	closer    io.Closer
	closeOnce sync.Once
}

// NewStdioTransport creates a transport over the given streams. closer
// may be nil when the streams do not need closing (os.Stdin/os.Stdout).
func NewStdioTransport(r io.Reader, w io.Writer, closer io.Closer) *StdioTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &StdioTransport{
		reader: scanner,
		writer: w,
		closer: closer,
	}
}

// ReadMessage returns the next newline-delimited message. io.EOF means
// the peer closed the channel cleanly.
func (t *StdioTransport) ReadMessage() ([]byte, error) {
	for t.reader.Scan() {
		line := t.reader.Bytes()
		if len(line) == 0 {
			continue // skip blank lines between messages
		}
		// Scanner reuses its buffer, so hand out a copy
		message := make([]byte, len(line))
		copy(message, line)
		return message, nil
	}

	if err := t.reader.Err(); err != nil {
		return nil, errors.NewTransportError(errors.ErrCodeReadFailed,
			"Failed to read message from stdio", err)
	}
	return nil, io.EOF
}

// WriteMessage writes one message followed by a newline
func (t *StdioTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return errors.NewTransportError(errors.ErrCodeWriteFailed,
			"Failed to write message to stdio", err)
	}
	if _, err := t.writer.Write([]byte("\n")); err != nil {
		return errors.NewTransportError(errors.ErrCodeWriteFailed,
			"Failed to write message delimiter", err)
	}
	return nil
}

// Close closes the underlying stream if one was provided
func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.closer != nil {
			err = t.closer.Close()
		}
	})
	return err
}
