package remotefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/filebridge/pkg/logger"
)

// ChunkSize is the fixed number of bytes requested by a single ReadChunk
// call and the negotiated SFTP packet ceiling.
const ChunkSize = 1 << 15

// OpenMode names one element of the mode set accepted by Open.
type OpenMode string

const (
	// ModeRead requests read access. It is the default when no modes are given.
	ModeRead OpenMode = "read"
	// ModeBinary requests byte-oriented reads. Reads are always byte
	// oriented here, so the mode is accepted and carries no extra effect.
	ModeBinary OpenMode = "binary"
)

// FileHandle is an opaque identifier for one open remote file. Handles are
// scoped to the session that issued them; using a handle after the session's
// channel has been replaced is undefined and surfaces whatever the remote
// side reports.
type FileHandle string

// FileSystem is the operation surface of a connection session. Readers and
// the HTTP layer depend on this interface rather than on *Session.
type FileSystem interface {
	ListDir(ctx context.Context, path string) ([]string, error)
	Open(ctx context.Context, path string, modes ...OpenMode) (FileHandle, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	ReadChunk(ctx context.Context, handle FileHandle) ([]byte, error)
	CloseFile(ctx context.Context, handle FileHandle) error
}

var _ FileSystem = (*Session)(nil)

// Session owns the connection to one remote endpoint and serializes every
// operation against it. All protocol work happens on a single goroutine that
// consumes a command queue; callers block until their command has run. A
// channel-closed failure during ListDir or Open triggers exactly one
// reconnect followed by one retry of the identical call; Stat deliberately
// has no such recovery and returns the failure as-is.
type Session struct {
	cfg  EndpointConfig
	dial DialFunc
	log  *zap.Logger

	requests chan func()
	quit     chan struct{}
	done     chan struct{}

	closeOnce sync.Once

	// Owned by the run goroutine. The channel is replaced wholesale on
	// reconnect and never escapes the session.
	channel Channel
	handles map[FileHandle]RemoteFile
	fatal   error

	mu       sync.RWMutex
	err      error
	closeErr error
}

// Option adjusts session construction.
type Option func(*Session)

// WithDialer replaces the channel dialer. Useful for proxied transports and
// for tests.
func WithDialer(dial DialFunc) Option {
	return func(s *Session) {
		if dial != nil {
			s.dial = dial
		}
	}
}

// WithLogger replaces the session logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// StartSession establishes the channel for the endpoint and starts the
// session's command loop. A connect failure is fatal: no session is returned
// and the caller (normally the pool supervisor) decides whether to try again.
func StartSession(ctx context.Context, cfg EndpointConfig, opts ...Option) (*Session, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		dial:     DialSFTP,
		requests: make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		handles:  make(map[FileHandle]RemoteFile),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithModule("remotefs").With(zap.String("session", cfg.Name))
	}

	channel, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, &ConnectError{Endpoint: s.cfg.Addr(), Err: err}
	}
	s.channel = channel

	s.log.Info("session connected", zap.String("endpoint", s.cfg.Addr()))
	go s.run()

	return s, nil
}

// Name returns the configured session name.
func (s *Session) Name() string {
	return s.cfg.Name
}

// Endpoint returns the host:port address the session talks to.
func (s *Session) Endpoint() string {
	return s.cfg.Addr()
}

// Done is closed once the session has stopped, deliberately or fatally.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that stopped the session, or nil after a
// deliberate Close.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close stops the session and releases the channel and any open handles.
// It blocks until the command loop has exited.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closeErr
}

// ListDir lists the entries of path in server order. On a channel-closed
// failure the session reconnects once and retries the identical call once;
// every other failure is returned untouched.
func (s *Session) ListDir(ctx context.Context, path string) ([]string, error) {
	type reply struct {
		names []string
		err   error
	}

	ch := make(chan reply, 1)
	if err := s.submit(ctx, func() {
		names, err := s.listDir(path)
		ch <- reply{names: names, err: err}
	}); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.names, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Open opens path with the given mode set (default {read}) and returns an
// opaque handle for subsequent ReadChunk calls. The reconnect-and-retry
// policy matches ListDir. Mode sets outside the read-only model are rejected
// before any remote call is made.
func (s *Session) Open(ctx context.Context, path string, modes ...OpenMode) (FileHandle, error) {
	flag, err := openFlags(modes)
	if err != nil {
		return "", err
	}

	type reply struct {
		handle FileHandle
		err    error
	}

	ch := make(chan reply, 1)
	if err := s.submit(ctx, func() {
		handle, err := s.openFile(path, flag)
		ch <- reply{handle: handle, err: err}
	}); err != nil {
		return "", err
	}

	select {
	case r := <-ch:
		return r.handle, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stat returns the attribute snapshot for path. Unlike ListDir and Open,
// Stat performs no reconnect when the channel is gone: the failure comes
// back to the caller and the session keeps running. The asymmetry is
// deliberate.
func (s *Session) Stat(ctx context.Context, path string) (FileInfo, error) {
	type reply struct {
		info FileInfo
		err  error
	}

	ch := make(chan reply, 1)
	if err := s.submit(ctx, func() {
		info, err := s.statPath(path)
		ch <- reply{info: info, err: err}
	}); err != nil {
		return FileInfo{}, err
	}

	select {
	case r := <-ch:
		return r.info, r.err
	case <-ctx.Done():
		return FileInfo{}, ctx.Err()
	}
}

// ReadChunk reads the next chunk of at most ChunkSize bytes from the handle.
// At end-of-stream the session closes the remote handle, forgets it, and
// returns io.EOF. Read errors also release the handle and are surfaced
// verbatim, never retried.
func (s *Session) ReadChunk(ctx context.Context, handle FileHandle) ([]byte, error) {
	type reply struct {
		chunk []byte
		err   error
	}

	ch := make(chan reply, 1)
	if err := s.submit(ctx, func() {
		chunk, err := s.readChunk(handle)
		ch <- reply{chunk: chunk, err: err}
	}); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.chunk, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CloseFile releases the handle without reading it to exhaustion. Handles
// already released, at end-of-stream or by an earlier CloseFile, report
// ErrHandleNotFound.
func (s *Session) CloseFile(ctx context.Context, handle FileHandle) error {
	ch := make(chan error, 1)
	if err := s.submit(ctx, func() {
		ch <- s.closeFile(handle)
	}); err != nil {
		return err
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit hands a command to the run loop. A command that is accepted always
// runs and always delivers its reply; the reply channels are buffered so an
// abandoned caller never blocks the loop.
func (s *Session) submit(ctx context.Context, fn func()) error {
	if s == nil {
		return ErrSessionClosed
	}

	select {
	case s.requests <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			s.teardown(nil)
			return
		case fn := <-s.requests:
			fn()
			if s.fatal != nil {
				s.teardown(s.fatal)
				return
			}
		}
	}
}

func (s *Session) teardown(fatal error) {
	var closeErr error
	for handle, file := range s.handles {
		closeErr = multierr.Append(closeErr, file.Close())
		delete(s.handles, handle)
	}
	if s.channel != nil {
		closeErr = multierr.Append(closeErr, s.channel.Close())
		s.channel = nil
	}

	s.mu.Lock()
	s.err = fatal
	s.closeErr = closeErr
	s.mu.Unlock()

	if fatal != nil {
		s.log.Error("session terminated", zap.Error(fatal))
		return
	}
	s.log.Info("session stopped")
}

func (s *Session) listDir(path string) ([]string, error) {
	entries, err := s.channel.ReadDir(path)
	if err != nil && IsChannelClosed(err) {
		if rerr := s.reconnect(); rerr != nil {
			return nil, rerr
		}
		entries, err = s.channel.ReadDir(path)
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Session) openFile(path string, flag int) (FileHandle, error) {
	file, err := s.channel.OpenFile(path, flag)
	if err != nil && IsChannelClosed(err) {
		if rerr := s.reconnect(); rerr != nil {
			return "", rerr
		}
		file, err = s.channel.OpenFile(path, flag)
	}
	if err != nil {
		return "", err
	}

	handle := FileHandle(uuid.NewString())
	s.handles[handle] = file
	return handle, nil
}

func (s *Session) statPath(path string) (FileInfo, error) {
	// No reconnect here, even for a dead channel: only ListDir and Open
	// recover automatically.
	fi, err := s.channel.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return infoFromStat(fi), nil
}

func (s *Session) readChunk(handle FileHandle) ([]byte, error) {
	file, ok := s.handles[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandleNotFound, handle)
	}

	buf := make([]byte, ChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			// Data first; an accompanying EOF surfaces on the next call.
			return buf[:n], nil
		}
		switch {
		case errors.Is(err, io.EOF):
			s.forgetHandle(handle, file)
			return nil, io.EOF
		case err != nil:
			s.forgetHandle(handle, file)
			return nil, err
		}
	}
}

func (s *Session) closeFile(handle FileHandle) error {
	file, ok := s.handles[handle]
	if !ok {
		return fmt.Errorf("%w: %q", ErrHandleNotFound, handle)
	}
	delete(s.handles, handle)
	return file.Close()
}

func (s *Session) forgetHandle(handle FileHandle, file RemoteFile) {
	delete(s.handles, handle)
	if err := file.Close(); err != nil {
		s.log.Debug("close remote file", zap.Error(err))
	}
}

// reconnect discards the current channel and dials a fresh one with the same
// configuration. Failure here is fatal for the session: the triggering
// caller receives the connect error and the command loop stops.
func (s *Session) reconnect() error {
	s.log.Warn("channel closed, reconnecting", zap.String("endpoint", s.cfg.Addr()))

	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}

	channel, err := s.dial(context.Background(), s.cfg)
	if err != nil {
		connectErr := &ConnectError{Endpoint: s.cfg.Addr(), Err: err}
		s.fatal = connectErr
		return connectErr
	}

	s.channel = channel
	s.log.Info("session reconnected", zap.String("endpoint", s.cfg.Addr()))
	return nil
}

func openFlags(modes []OpenMode) (int, error) {
	if len(modes) == 0 {
		modes = []OpenMode{ModeRead}
	}
	for _, mode := range modes {
		switch mode {
		case ModeRead, ModeBinary:
		default:
			return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
		}
	}
	return os.O_RDONLY, nil
}
