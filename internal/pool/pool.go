package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/filebridge/internal/remotefs"
	"github.com/charlesng35/filebridge/pkg/logger"
	"github.com/charlesng35/filebridge/pkg/metrics"
)

// MemberState is the supervision state of one pool member.
type MemberState string

const (
	StateStarting   MemberState = "starting"
	StateRunning    MemberState = "running"
	StateRestarting MemberState = "restarting"
	StateFailed     MemberState = "failed"
	StateStopped    MemberState = "stopped"
)

// ErrUnknownSession is returned for lookups of a session name that was never
// configured.
var ErrUnknownSession = errors.New("pool: unknown session")

// DownError is returned when a configured session exists but currently has
// no live connection to hand out.
type DownError struct {
	Name  string
	State MemberState
}

func (e *DownError) Error() string {
	return fmt.Sprintf("pool: session %q is %s", e.Name, e.State)
}

// Config drives pool construction. Endpoints come from the application
// configuration; there are no ambient globals involved.
type Config struct {
	Endpoints []remotefs.EndpointConfig

	Backoff BackoffConfig

	// MaxRestarts caps consecutive failed restarts per member before the
	// member is parked as failed. Zero means restart forever.
	MaxRestarts int

	// StableAfter is the uptime after which a member's restart counter
	// resets, so a long-lived session that finally dies starts its backoff
	// schedule from the beginning again.
	StableAfter time.Duration
}

const defaultStableAfter = time.Minute

// Status is a point-in-time snapshot of one member, shaped for the API.
type Status struct {
	Name        string      `json:"name"`
	Endpoint    string      `json:"endpoint"`
	State       MemberState `json:"state"`
	Restarts    int         `json:"restarts"`
	ConnectedAt time.Time   `json:"connected_at,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
}

type member struct {
	cfg remotefs.EndpointConfig

	mu          sync.RWMutex
	state       MemberState
	session     *remotefs.Session
	restarts    int
	lastErr     error
	connectedAt time.Time
}

// Pool owns one supervised session per configured endpoint. Members are
// independent: each runs under its own one-for-one supervision loop, and a
// member stuck in restarts never delays its siblings.
type Pool struct {
	backoff     BackoffConfig
	maxRestarts int
	stableAfter time.Duration

	log         *zap.Logger
	sink        EventSink
	sessionOpts []remotefs.Option

	members map[string]*member
	order   []string

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option adjusts pool construction.
type Option func(*Pool)

// WithEventSink registers a callback for member state transitions. The sink
// runs on supervision goroutines and must not block.
func WithEventSink(sink EventSink) Option {
	return func(p *Pool) { p.sink = sink }
}

// WithSessionOptions forwards options to every session the pool starts.
// Tests use this to install a scripted dialer.
func WithSessionOptions(opts ...remotefs.Option) Option {
	return func(p *Pool) { p.sessionOpts = append(p.sessionOpts, opts...) }
}

// WithLogger replaces the pool logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) {
		if log != nil {
			p.log = log
		}
	}
}

// New validates the configuration and builds the pool. Nothing is dialed
// until Start.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("pool: at least one endpoint is required")
	}

	p := &Pool{
		backoff:     cfg.Backoff.normalized(),
		maxRestarts: cfg.MaxRestarts,
		stableAfter: cfg.StableAfter,
		members:     make(map[string]*member, len(cfg.Endpoints)),
	}
	if p.stableAfter <= 0 {
		p.stableAfter = defaultStableAfter
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.WithModule("pool")
	}

	for _, endpoint := range cfg.Endpoints {
		endpoint = endpoint.Normalize()
		if err := endpoint.Validate(); err != nil {
			return nil, err
		}
		if _, exists := p.members[endpoint.Name]; exists {
			return nil, fmt.Errorf("pool: duplicate session name %q", endpoint.Name)
		}
		p.members[endpoint.Name] = &member{cfg: endpoint, state: StateStarting}
		p.order = append(p.order, endpoint.Name)
	}

	return p, nil
}

// Start launches one supervision loop per member. It returns immediately;
// connection progress is observable through Snapshot and the event sink.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool: already started")
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, name := range p.order {
		m := p.members[name]
		p.wg.Add(1)
		go p.supervise(runCtx, m)
	}

	p.log.Info("pool started", zap.Int("sessions", len(p.order)))
	return nil
}

// Shutdown stops all supervision loops and closes every live session. It
// blocks until the loops have exited or ctx runs out.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the live file system for the named session. Configured but
// currently disconnected members report a DownError so callers can tell
// "down" from "unknown".
func (p *Pool) Get(name string) (remotefs.FileSystem, error) {
	m, ok := p.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, name)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateRunning || m.session == nil {
		return nil, &DownError{Name: name, State: m.state}
	}
	return m.session, nil
}

// Names returns the configured session names in configuration order.
func (p *Pool) Names() []string {
	names := make([]string, len(p.order))
	copy(names, p.order)
	return names
}

// Snapshot reports the current state of every member in configuration order.
func (p *Pool) Snapshot() []Status {
	statuses := make([]Status, 0, len(p.order))
	for _, name := range p.order {
		statuses = append(statuses, p.members[name].status())
	}
	return statuses
}

// StatusOf reports the current state of one member.
func (p *Pool) StatusOf(name string) (Status, error) {
	m, ok := p.members[name]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrUnknownSession, name)
	}
	return m.status(), nil
}

func (m *member) status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Name:        m.cfg.Name,
		Endpoint:    m.cfg.Addr(),
		State:       m.state,
		Restarts:    m.restarts,
		ConnectedAt: m.connectedAt,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (p *Pool) supervise(ctx context.Context, m *member) {
	defer p.wg.Done()

	log := p.log.With(zap.String("session", m.cfg.Name), zap.String("endpoint", m.cfg.Addr()))
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0

	// retry schedules the next restart attempt. It reports false when the
	// member is done for good: budget exhausted or pool shutting down.
	retry := func(cause error) bool {
		attempt++
		if p.maxRestarts > 0 && attempt > p.maxRestarts {
			log.Error("restart budget exhausted", zap.Int("restarts", attempt-1), zap.Error(cause))
			p.transition(m, StateFailed, cause)
			return false
		}

		delay := NextBackoffDelay(p.backoff, attempt-1, rng)
		p.transition(m, StateRestarting, cause)
		log.Warn("session restarting",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(cause))

		select {
		case <-ctx.Done():
			p.transition(m, StateStopped, nil)
			return false
		case <-time.After(delay):
			return true
		}
	}

	p.transition(m, StateStarting, nil)

	for {
		if ctx.Err() != nil {
			p.transition(m, StateStopped, nil)
			return
		}

		sess, err := remotefs.StartSession(ctx, m.cfg, p.sessionOpts...)
		if err != nil {
			if ctx.Err() != nil {
				p.transition(m, StateStopped, nil)
				return
			}
			if !retry(err) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.session = sess
		m.mu.Unlock()
		p.transition(m, StateRunning, nil)
		connectedAt := time.Now()

		select {
		case <-ctx.Done():
			_ = sess.Close()
			p.detach(m)
			p.transition(m, StateStopped, nil)
			return

		case <-sess.Done():
			cause := sess.Err()
			p.detach(m)
			if ctx.Err() != nil {
				p.transition(m, StateStopped, nil)
				return
			}
			if time.Since(connectedAt) >= p.stableAfter {
				attempt = 0
			}
			if !retry(cause) {
				return
			}
		}
	}
}

func (p *Pool) detach(m *member) {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
}

// transition records the new state, keeps the metrics in step, and notifies
// the event sink.
func (p *Pool) transition(m *member, state MemberState, cause error) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	if cause != nil {
		m.lastErr = cause
	}
	switch state {
	case StateRunning:
		m.connectedAt = time.Now()
	case StateRestarting:
		m.restarts++
	}
	restarts := m.restarts
	m.mu.Unlock()

	if state == StateRunning && prev != StateRunning {
		metrics.ActiveSessions.Inc()
	} else if state != StateRunning && prev == StateRunning {
		metrics.ActiveSessions.Dec()
	}
	if state == StateRestarting {
		metrics.SessionRestarts.WithLabelValues(m.cfg.Name).Inc()
	}

	p.emit(Event{
		Session:  m.cfg.Name,
		Endpoint: m.cfg.Addr(),
		State:    state,
		Restarts: restarts,
		Error:    errString(cause),
		At:       time.Now(),
	})
}

func (p *Pool) emit(evt Event) {
	if p.sink != nil {
		p.sink(evt)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
