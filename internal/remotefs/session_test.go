package remotefs

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgsftp "github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
)

type stubFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	sys     any
}

func (fi stubFileInfo) Name() string       { return fi.name }
func (fi stubFileInfo) Size() int64        { return fi.size }
func (fi stubFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi stubFileInfo) ModTime() time.Time { return fi.modTime }
func (fi stubFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi stubFileInfo) Sys() any           { return fi.sys }

func dirEntries(names ...string) []os.FileInfo {
	infos := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, stubFileInfo{name: name, mode: 0o644})
	}
	return infos
}

type stubFile struct {
	mu         sync.Mutex
	data       []byte
	offset     int
	readErr    error // replaces io.EOF once the data is consumed
	closeCalls int
}

func (f *stubFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.offset >= len(f.data) {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}

	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *stubFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *stubFile) closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type stubChannel struct {
	mu         sync.Mutex
	readDirFn  func(path string) ([]os.FileInfo, error)
	openFileFn func(path string, flag int) (RemoteFile, error)
	statFn     func(path string) (os.FileInfo, error)

	readDirCalls int
	openCalls    int
	statCalls    int
	closeCalls   int
}

func (c *stubChannel) ReadDir(path string) ([]os.FileInfo, error) {
	c.mu.Lock()
	c.readDirCalls++
	fn := c.readDirFn
	c.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(path)
}

func (c *stubChannel) OpenFile(path string, flag int) (RemoteFile, error) {
	c.mu.Lock()
	c.openCalls++
	fn := c.openFileFn
	c.mu.Unlock()

	if fn == nil {
		return &stubFile{}, nil
	}
	return fn(path, flag)
}

func (c *stubChannel) Stat(path string) (os.FileInfo, error) {
	c.mu.Lock()
	c.statCalls++
	fn := c.statFn
	c.mu.Unlock()

	if fn == nil {
		return stubFileInfo{name: path, mode: 0o644}, nil
	}
	return fn(path)
}

func (c *stubChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

func (c *stubChannel) counts() (readDir, open, stat, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readDirCalls, c.openCalls, c.statCalls, c.closeCalls
}

type dialScript struct {
	mu    sync.Mutex
	steps []func() (Channel, error)
	cfgs  []EndpointConfig
}

func (d *dialScript) dial(_ context.Context, cfg EndpointConfig) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfgs = append(d.cfgs, cfg)
	if len(d.steps) == 0 {
		return nil, errors.New("dial script exhausted")
	}

	step := d.steps[0]
	d.steps = d.steps[1:]
	return step()
}

func (d *dialScript) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cfgs)
}

func dialTo(channels ...Channel) *dialScript {
	script := &dialScript{}
	for _, ch := range channels {
		ch := ch
		script.steps = append(script.steps, func() (Channel, error) { return ch, nil })
	}
	return script
}

func (d *dialScript) thenFail(err error) *dialScript {
	d.steps = append(d.steps, func() (Channel, error) { return nil, err })
	return d
}

func testEndpoint() EndpointConfig {
	return EndpointConfig{Name: "primary", Host: "example.com", User: "u", Password: "p"}
}

func startTestSession(t *testing.T, script *dialScript) *Session {
	t.Helper()

	sess, err := StartSession(context.Background(), testEndpoint(), WithDialer(script.dial))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func waitStopped(t *testing.T, sess *Session) {
	t.Helper()

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop in time")
	}
}

func TestStartSession_ValidatesConfig(t *testing.T) {
	script := dialTo(&stubChannel{})

	_, err := StartSession(context.Background(), EndpointConfig{User: "u", Password: "p"}, WithDialer(script.dial))
	require.Error(t, err)
	require.Equal(t, 0, script.calls())
}

func TestStartSession_DialFailureIsFatal(t *testing.T) {
	script := (&dialScript{}).thenFail(errors.New("connection refused"))

	_, err := StartSession(context.Background(), testEndpoint(), WithDialer(script.dial))
	require.Error(t, err)

	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	require.Equal(t, "example.com:22", connectErr.Endpoint)
}

func TestSession_ListDirReturnsEntriesInServerOrder(t *testing.T) {
	channel := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) {
			return dirEntries("a.txt", "b.txt"), nil
		},
	}
	script := dialTo(channel)
	sess := startTestSession(t, script)

	names, err := sess.ListDir(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "b.txt"}, names)

	require.Equal(t, 1, script.calls())
	require.Equal(t, "example.com:22", script.cfgs[0].Addr())
	require.Equal(t, "u", script.cfgs[0].User)
	require.Equal(t, "p", script.cfgs[0].Password)
}

func TestSession_ListDirReconnectsOnceOnClosedChannel(t *testing.T) {
	dead := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) { return nil, net.ErrClosed },
	}
	fresh := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) { return dirEntries("a.txt", "b.txt"), nil },
	}
	script := dialTo(dead, fresh)
	sess := startTestSession(t, script)

	names, err := sess.ListDir(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "b.txt"}, names)

	require.Equal(t, 2, script.calls())
	_, _, _, closed := dead.counts()
	require.Equal(t, 1, closed, "stale channel must be discarded")
	require.Nil(t, sess.Err())
}

func TestSession_ListDirDoesNotRetryTwice(t *testing.T) {
	dead := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) { return nil, net.ErrClosed },
	}

	var freshCalls atomic.Int32
	fresh := &stubChannel{}
	fresh.readDirFn = func(string) ([]os.FileInfo, error) {
		if freshCalls.Add(1) == 1 {
			return nil, net.ErrClosed
		}
		return dirEntries("later.txt"), nil
	}

	script := dialTo(dead, fresh)
	sess := startTestSession(t, script)

	_, err := sess.ListDir(context.Background(), "/")
	require.ErrorIs(t, err, net.ErrClosed)
	require.Equal(t, 2, script.calls(), "exactly one reconnect")

	// The failure was returned, not escalated: the session keeps serving.
	require.Nil(t, sess.Err())
	names, err := sess.ListDir(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, []string{"later.txt"}, names)
	require.Equal(t, 2, script.calls())
}

func TestSession_ListDirFatalWhenReconnectFails(t *testing.T) {
	dead := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) { return nil, net.ErrClosed },
	}
	script := dialTo(dead).thenFail(errors.New("connection refused"))
	sess := startTestSession(t, script)

	_, err := sess.ListDir(context.Background(), "/")
	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)

	waitStopped(t, sess)
	require.ErrorAs(t, sess.Err(), &connectErr)

	_, err = sess.ListDir(context.Background(), "/")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_ListDirOtherErrorsAreNotRetried(t *testing.T) {
	denied := &pkgsftp.StatusError{Code: uint32(pkgsftp.ErrSSHFxPermissionDenied)}
	channel := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) { return nil, denied },
	}
	script := dialTo(channel)
	sess := startTestSession(t, script)

	_, err := sess.ListDir(context.Background(), "/secret")
	require.Error(t, err)

	var statusErr *pkgsftp.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 1, script.calls(), "no reconnect for remote rejections")
	require.Nil(t, sess.Err())
}

func TestSession_OpenAppliesSameRetryPolicy(t *testing.T) {
	dead := &stubChannel{
		openFileFn: func(string, int) (RemoteFile, error) { return nil, net.ErrClosed },
	}
	fresh := &stubChannel{
		openFileFn: func(string, int) (RemoteFile, error) { return &stubFile{data: []byte("x")}, nil },
	}
	script := dialTo(dead, fresh)
	sess := startTestSession(t, script)

	handle, err := sess.Open(context.Background(), "/a.txt", ModeRead, ModeBinary)
	require.NoError(t, err)
	require.NotEmpty(t, handle)
	require.Equal(t, 2, script.calls())
}

func TestSession_OpenRejectsModesOutsideReadOnlyModel(t *testing.T) {
	channel := &stubChannel{}
	script := dialTo(channel)
	sess := startTestSession(t, script)

	_, err := sess.Open(context.Background(), "/a.txt", OpenMode("write"))
	require.ErrorIs(t, err, ErrUnsupportedMode)

	_, open, _, _ := channel.counts()
	require.Equal(t, 0, open, "invalid mode sets never reach the remote")
}

func TestSession_StatDoesNotReconnectOnClosedChannel(t *testing.T) {
	channel := &stubChannel{
		statFn: func(string) (os.FileInfo, error) { return nil, net.ErrClosed },
		readDirFn: func(string) ([]os.FileInfo, error) {
			return dirEntries("still-alive.txt"), nil
		},
	}
	script := dialTo(channel)
	sess := startTestSession(t, script)

	_, err := sess.Stat(context.Background(), "/a.txt")
	require.ErrorIs(t, err, net.ErrClosed)
	require.Equal(t, 1, script.calls(), "stat must not trigger a reconnect")
	require.Nil(t, sess.Err())

	names, err := sess.ListDir(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, []string{"still-alive.txt"}, names)
}

func TestSession_StatProjectsAttributes(t *testing.T) {
	modified := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	accessed := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

	channel := &stubChannel{
		statFn: func(string) (os.FileInfo, error) {
			return stubFileInfo{
				name:    "a.txt",
				size:    1234,
				mode:    0o644,
				modTime: modified,
				sys:     &pkgsftp.FileStat{Atime: uint32(accessed.Unix())},
			}, nil
		},
	}
	sess := startTestSession(t, dialTo(channel))

	info, err := sess.Stat(context.Background(), "/a.txt")
	require.NoError(t, err)
	require.Equal(t, int64(1234), info.Size)
	require.Equal(t, AccessReadWrite, info.Access)
	require.Equal(t, modified, info.ModifiedAt)
	require.Equal(t, accessed.Unix(), info.AccessedAt.Unix())
}

func TestSession_ReadChunkWalks70000ByteFile(t *testing.T) {
	data := make([]byte, 70000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	file := &stubFile{data: data}

	channel := &stubChannel{
		openFileFn: func(string, int) (RemoteFile, error) { return file, nil },
	}
	sess := startTestSession(t, dialTo(channel))

	handle, err := sess.Open(context.Background(), "/a.txt", ModeRead, ModeBinary)
	require.NoError(t, err)

	wantSizes := []int{32768, 32768, 4464}
	var got []byte
	for _, want := range wantSizes {
		chunk, err := sess.ReadChunk(context.Background(), handle)
		require.NoError(t, err)
		require.Len(t, chunk, want)
		got = append(got, chunk...)
	}

	_, err = sess.ReadChunk(context.Background(), handle)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, data, got)
	require.Equal(t, 1, file.closed(), "end-of-stream must close the remote handle")

	_, err = sess.ReadChunk(context.Background(), handle)
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestSession_ReadChunkErrorReleasesHandleAndSurfacesVerbatim(t *testing.T) {
	readFailure := errors.New("remote read failed")
	file := &stubFile{data: []byte("partial payload"), readErr: readFailure}

	channel := &stubChannel{
		openFileFn: func(string, int) (RemoteFile, error) { return file, nil },
	}
	sess := startTestSession(t, dialTo(channel))

	handle, err := sess.Open(context.Background(), "/a.txt")
	require.NoError(t, err)

	chunk, err := sess.ReadChunk(context.Background(), handle)
	require.NoError(t, err)
	require.Equal(t, []byte("partial payload"), chunk)

	_, err = sess.ReadChunk(context.Background(), handle)
	require.ErrorIs(t, err, readFailure)
	require.Equal(t, 1, file.closed())

	_, err = sess.ReadChunk(context.Background(), handle)
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestSession_CloseFileReleasesHandle(t *testing.T) {
	file := &stubFile{data: []byte("unread")}
	channel := &stubChannel{
		openFileFn: func(string, int) (RemoteFile, error) { return file, nil },
	}
	sess := startTestSession(t, dialTo(channel))

	handle, err := sess.Open(context.Background(), "/a.txt")
	require.NoError(t, err)

	require.NoError(t, sess.CloseFile(context.Background(), handle))
	require.Equal(t, 1, file.closed())

	err = sess.CloseFile(context.Background(), handle)
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestSession_SerializesOperations(t *testing.T) {
	var inflight atomic.Int32
	var overlapped atomic.Bool

	channel := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) {
			if inflight.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(200 * time.Microsecond)
			inflight.Add(-1)
			return dirEntries("a.txt"), nil
		},
	}
	sess := startTestSession(t, dialTo(channel))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := sess.ListDir(context.Background(), "/")
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.False(t, overlapped.Load(), "operations must never overlap inside the channel")
}

func TestSession_SubmitHonorsContextWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	channel := &stubChannel{
		readDirFn: func(string) ([]os.FileInfo, error) {
			started <- struct{}{}
			<-release
			return dirEntries("slow.txt"), nil
		},
	}
	sess := startTestSession(t, dialTo(channel))

	type result struct {
		names []string
		err   error
	}
	firstDone := make(chan result, 1)
	go func() {
		names, err := sess.ListDir(context.Background(), "/")
		firstDone <- result{names: names, err: err}
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sess.ListDir(ctx, "/")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	first := <-firstDone
	require.NoError(t, first.err)
	require.Equal(t, []string{"slow.txt"}, first.names)
}

func TestSession_AbandonedCallerDoesNotWedgeLoop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	var calls atomic.Int32
	channel := &stubChannel{}
	channel.readDirFn = func(string) ([]os.FileInfo, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return dirEntries("ok.txt"), nil
	}
	sess := startTestSession(t, dialTo(channel))

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := sess.ListDir(ctx, "/")
		abandoned <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-abandoned, context.Canceled)

	close(release)

	names, err := sess.ListDir(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, []string{"ok.txt"}, names)
}

func TestSession_CloseStopsLoopAndReleasesChannel(t *testing.T) {
	file := &stubFile{data: []byte("left open")}
	channel := &stubChannel{
		openFileFn: func(string, int) (RemoteFile, error) { return file, nil },
	}
	sess := startTestSession(t, dialTo(channel))

	_, err := sess.Open(context.Background(), "/a.txt")
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	waitStopped(t, sess)
	require.Nil(t, sess.Err())

	require.Equal(t, 1, file.closed(), "open handles are released on close")
	_, _, _, closed := channel.counts()
	require.Equal(t, 1, closed)

	_, err = sess.ListDir(context.Background(), "/")
	require.ErrorIs(t, err, ErrSessionClosed)
}
