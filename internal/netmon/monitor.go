// Package netmon observes network connectivity to the patrol backend.
//
// The monitor probes the backend host on an interval and exposes the
// current connectivity plus a signal channel that fires on the
// offline-to-online transition. That transition is the sole external
// stimulus for an unscheduled sync pass.
package netmon

import (
	"context"
	"log"
	"net"
	"net/url"
	"os"
	"sync"
	"time"
)

// Probe checks reachability once. It returns nil when the backend is
// reachable.
type Probe func(ctx context.Context) error

// Config holds monitor configuration.
type Config struct {
	// Interval between probes (default: 15s).
	Interval time.Duration

	// ProbeTimeout bounds a single probe (default: 5s).
	ProbeTimeout time.Duration

	// Probe overrides the default TCP dial probe (mainly for tests).
	Probe Probe

	// Logger for transition events (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor tracks backend reachability.
type Monitor struct {
	config Config
	probe  Probe
	logger *log.Logger

	mu        sync.Mutex
	connected bool
	started   bool

	online chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor probing the host of the given backend URL.
func New(baseURL string, config Config) (*Monitor, error) {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[netmon] ", log.LstdFlags)
	}

	probe := config.Probe
	if probe == nil {
		addr, err := dialAddr(baseURL)
		if err != nil {
			return nil, err
		}
		probe = dialProbe(addr, config.ProbeTimeout)
	}

	return &Monitor{
		config: config,
		probe:  probe,
		logger: logger,
		online: make(chan struct{}, 1),
	}, nil
}

// dialAddr extracts host:port from the backend URL.
func dialAddr(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "http" {
			port = "80"
		} else {
			port = "443"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// dialProbe returns a probe that opens and closes a TCP connection.
func dialProbe(addr string, timeout time.Duration) Probe {
	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) error {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// Start begins probing in the background. The first probe runs
// immediately so Connected reflects reality before the first interval.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.check(ctx)

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the background goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// check runs one probe and records the transition.
func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	err := m.probe(probeCtx)
	cancel()

	m.mu.Lock()
	was := m.connected
	m.connected = err == nil
	now := m.connected
	m.mu.Unlock()

	if now && !was {
		m.logger.Printf("Connectivity restored")
		select {
		case m.online <- struct{}{}:
		default: // a pending signal already covers this transition
		}
	} else if !now && was {
		m.logger.Printf("Connectivity lost: %v", err)
	}
}

// Connected returns the last observed connectivity.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Online returns the channel that fires when connectivity is restored.
func (m *Monitor) Online() <-chan struct{} {
	return m.online
}
