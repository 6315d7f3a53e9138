package remotefs

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	pkgsftp "github.com/pkg/sftp"
)

var (
	// ErrSessionClosed is returned for operations submitted to a session that
	// has terminated, either deliberately or after a fatal reconnect failure.
	ErrSessionClosed = errors.New("remotefs: session closed")

	// ErrHandleNotFound is returned when an operation references a file
	// handle the session does not hold, including handles already released
	// at end-of-stream.
	ErrHandleNotFound = errors.New("remotefs: file handle not found")

	// ErrUnsupportedMode is returned by Open for mode sets outside the
	// read-only model.
	ErrUnsupportedMode = errors.New("remotefs: unsupported open mode")
)

// ConnectError reports a failed attempt to establish the channel, at session
// start or during a reconnect. It is fatal for the session that hit it.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("remotefs: connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsChannelClosed reports whether err indicates that the transport underneath
// the SFTP channel is gone, as opposed to the remote end rejecting the
// operation itself. Only ListDir and Open recover from these automatically.
func IsChannelClosed(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *pkgsftp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.FxCode() {
		case pkgsftp.ErrSSHFxConnectionLost, pkgsftp.ErrSSHFxNoConnection:
			return true
		}
		return false
	}

	// A broken transport surfaces as EOF or a closed-connection error on
	// control operations; EOF is never a legitimate outcome for those.
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
