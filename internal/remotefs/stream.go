package remotefs

import (
	"context"
	"errors"
	"io"
)

// Stream is a lazy, forward-only, non-restartable sequence of file chunks.
// The file is opened on the first Next call, each successful Next yields one
// chunk of at most ChunkSize bytes, and the remote handle is released on
// every exit path: by the session at end-of-stream and on read errors, and
// by Close for early termination. A terminal failure is reported through
// Err, distinguishable from normal completion.
//
// The usual shape:
//
//	stream := remotefs.NewStream(fs, path)
//	defer stream.Close()
//	for stream.Next(ctx) {
//		use(stream.Bytes())
//	}
//	if err := stream.Err(); err != nil {
//		...
//	}
type Stream struct {
	fs   FileSystem
	path string

	handle FileHandle
	chunk  []byte
	err    error

	opened bool
	done   bool
	closed bool
}

// NewStream prepares a stream over path. No remote call happens until the
// first Next.
func NewStream(fs FileSystem, path string) *Stream {
	return &Stream{fs: fs, path: path}
}

// Next advances to the next chunk, opening the file on first use. It returns
// false when the sequence has ended; Err tells completion and failure apart.
func (st *Stream) Next(ctx context.Context) bool {
	if st == nil || st.done || st.closed {
		return false
	}

	if !st.opened {
		handle, err := st.fs.Open(ctx, st.path, ModeBinary, ModeRead)
		if err != nil {
			st.err = err
			st.done = true
			return false
		}
		st.opened = true
		st.handle = handle
	}

	chunk, err := st.fs.ReadChunk(ctx, st.handle)
	if errors.Is(err, io.EOF) {
		st.chunk = nil
		st.done = true
		return false
	}
	if err != nil {
		st.chunk = nil
		st.err = err
		st.done = true
		return false
	}

	st.chunk = chunk
	return true
}

// Bytes returns the chunk produced by the last successful Next. The slice is
// only valid until the next call to Next.
func (st *Stream) Bytes() []byte {
	if st == nil {
		return nil
	}
	return st.chunk
}

// Err returns the terminal error, or nil after normal completion.
func (st *Stream) Err() error {
	if st == nil {
		return nil
	}
	return st.err
}

// Close releases the remote handle if the stream still holds one. It is safe
// to call at any point and any number of times; handles already released by
// the session report nothing.
func (st *Stream) Close() error {
	if st == nil || st.closed {
		return nil
	}
	st.closed = true
	st.done = true
	st.chunk = nil

	if !st.opened {
		return nil
	}

	err := st.fs.CloseFile(context.Background(), st.handle)
	if err != nil && !errors.Is(err, ErrHandleNotFound) && !errors.Is(err, ErrSessionClosed) {
		return err
	}
	return nil
}
