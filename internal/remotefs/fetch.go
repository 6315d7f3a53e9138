package remotefs

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// ReadAll retrieves the complete contents of path through fs, opening it in
// {binary, read} mode and appending chunks in arrival order until
// end-of-stream. The whole file is held in memory; use a Stream for large
// files.
func ReadAll(ctx context.Context, fs FileSystem, path string) ([]byte, error) {
	handle, err := fs.Open(ctx, path, ModeBinary, ModeRead)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for {
		chunk, err := fs.ReadChunk(ctx, handle)
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			// The session releases the handle on read errors; this covers
			// submission failures such as a cancelled context.
			_ = fs.CloseFile(context.Background(), handle)
			return nil, err
		}
		buf.Write(chunk)
	}
}
