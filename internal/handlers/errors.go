package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	pkgsftp "github.com/pkg/sftp"

	"github.com/charlesng35/filebridge/internal/pool"
	"github.com/charlesng35/filebridge/internal/remotefs"
	apperrors "github.com/charlesng35/filebridge/pkg/errors"
)

// mapRemoteError translates pool and remote filesystem failures into the
// HTTP error envelope. Unknown sessions are 404, members that are not
// running are 503, remote status failures are 502, and everything else is
// wrapped as an internal error.
func mapRemoteError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pool.ErrUnknownSession) {
		return apperrors.ErrNotFound
	}

	var down *pool.DownError
	if errors.As(err, &down) {
		return apperrors.New(
			"session.unavailable",
			fmt.Sprintf("session %q is %s", down.Name, down.State),
			http.StatusServiceUnavailable,
		).WithInternal(err)
	}

	if errors.Is(err, remotefs.ErrSessionClosed) {
		return apperrors.ErrUnavailable.WithInternal(err)
	}
	if errors.Is(err, remotefs.ErrUnsupportedMode) {
		return apperrors.NewBadRequest(err.Error())
	}

	var statusErr *pkgsftp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.FxCode() {
		case pkgsftp.ErrSSHFxNoSuchFile:
			return apperrors.ErrNotFound
		case pkgsftp.ErrSSHFxPermissionDenied:
			return apperrors.ErrForbidden
		default:
			return apperrors.New("remote.error", statusErr.Error(), http.StatusBadGateway).WithInternal(err)
		}
	}

	if errors.Is(err, os.ErrNotExist) {
		return apperrors.ErrNotFound
	}
	if errors.Is(err, os.ErrPermission) {
		return apperrors.ErrForbidden
	}

	var connErr *remotefs.ConnectError
	if errors.As(err, &connErr) {
		return apperrors.ErrUpstream.WithInternal(err)
	}
	if remotefs.IsChannelClosed(err) {
		return apperrors.ErrUpstream.WithInternal(err)
	}

	return apperrors.Wrap(err, "remote operation failed")
}
