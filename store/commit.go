package store

import (
	"bytes"
	"errors"
)

// ErrClosed is returned when writing to a closed commit
// writer.
var ErrClosed = errors.New("write handle closed")

// CommitFunc persists the final content of an entry.
type CommitFunc func(content []byte) error

// CommitWriter buffers writes and hands the whole content
// to a CommitFunc on Close. Backends that can only replace
// an entry as a unit (a remote file, a map value) use it
// to offer Append and Truncate handles.
type CommitWriter struct {
	buf    bytes.Buffer
	commit CommitFunc
	closed bool
}

var _ Aborter = (*CommitWriter)(nil)

// NewCommitWriter returns a writer whose buffer starts
// with initial. Pass the current content for Append and
// nil for Truncate.
func NewCommitWriter(
	initial []byte,
	commit CommitFunc,
) *CommitWriter {
	cw := &CommitWriter{commit: commit}
	cw.buf.Write(initial)

	return cw
}

// Write implements io.Writer.
func (cw *CommitWriter) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, ErrClosed
	}

	return cw.buf.Write(p)
}

// Abort drops the buffered content without committing.
// Later calls to Abort or Close are no-ops.
func (cw *CommitWriter) Abort() error {
	cw.closed = true
	cw.buf.Reset()

	return nil
}

// Close commits the buffered content once. Later calls are
// no-ops.
func (cw *CommitWriter) Close() error {
	if cw.closed {
		return nil
	}

	cw.closed = true

	content := cw.buf.Bytes()
	if content == nil {
		content = []byte{}
	}

	return cw.commit(content)
}
