package stream

import (
	"context"
	"sync"
	"time"

	appconfig "tradelink/config"
	"tradelink/logger"

	"github.com/gorilla/websocket"
)

// State enumerates the lifecycle of the market-data socket.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Manager owns the single persistent market-data socket. A dropped or failed
// connection is retried with linear backoff (baseDelay * attempt) up to
// MaxAttempts consecutive failures; after that the manager stays Closed until
// Connect is called again. Subscriptions are not replayed across reconnects,
// the caller reissues them from the OnOpen callback.
type Manager struct {
	config *appconfig.Config
	log    *logger.Log

	dial     func(ctx context.Context, url string) (*websocket.Conn, error)
	schedule func(delay time.Duration, fn func()) *time.Timer

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	attempts   int
	subID      int
	retryTimer *time.Timer
	pingCancel context.CancelFunc
	closed     bool
	onOpen     func()
	onMessage  func([]byte)

	wg sync.WaitGroup
}

// NewManager creates a manager for the configured stream endpoint.
func NewManager(cfg *appconfig.Config) *Manager {
	m := &Manager{
		config:   cfg,
		log:      logger.GetLogger(),
		schedule: time.AfterFunc,
	}
	m.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: cfg.Stream.ConnectTimeout}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		return conn, err
	}
	return m
}

// OnOpen registers a callback invoked each time the socket reaches Open.
func (m *Manager) OnOpen(fn func()) {
	m.mu.Lock()
	m.onOpen = fn
	m.mu.Unlock()
}

// OnMessage registers a callback invoked for every frame read from the socket.
func (m *Manager) OnMessage(fn func([]byte)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the consecutive failed-connect counter.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the market-data socket. Calling it while a connection attempt
// is in flight, or while the socket is already open, is a no-op. After the
// retry budget is exhausted this is the only way to resume; the attempt
// counter resets once a connection reaches Open.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.mu.Unlock()

	m.wg.Add(1)
	go m.establish(ctx)
}

func (m *Manager) establish(ctx context.Context) {
	defer m.wg.Done()
	log := m.log.WithComponent("stream_manager").WithField("url", m.config.Stream.URL)

	conn, err := m.dial(ctx, m.config.Stream.URL)
	if err != nil {
		log.WithError(err).Warn("failed to connect market data socket")
		m.mu.Lock()
		m.state = StateClosed
		m.mu.Unlock()
		m.reconnect(ctx)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.pingCancel = m.startPing(ctx, conn)
	onOpen := m.onOpen
	m.mu.Unlock()

	log.Info("market data socket open")
	if onOpen != nil {
		onOpen()
	}
	m.readLoop(ctx, conn, log)
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, log *logger.Entry) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			if m.pingCancel != nil {
				m.pingCancel()
				m.pingCancel = nil
			}
			m.conn = nil
			m.state = StateClosed
			m.mu.Unlock()
			conn.Close()
			if closed || ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("market data socket read loop ended")
			m.reconnect(ctx)
			return
		}
		m.mu.Lock()
		handler := m.onMessage
		m.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

// reconnect schedules the next Connect with linear backoff, or gives up once
// the attempt budget is spent.
func (m *Manager) reconnect(ctx context.Context) {
	log := m.log.WithComponent("stream_manager")

	m.mu.Lock()
	if m.closed || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.config.Stream.MaxAttempts {
		m.mu.Unlock()
		log.WithField("attempts", m.config.Stream.MaxAttempts).Error("giving up on market data socket, manual reconnect required")
		return
	}
	m.attempts++
	attempt := m.attempts
	delay := time.Duration(attempt) * m.config.Stream.BaseDelay
	m.mu.Unlock()

	logger.IncrementReconnect()
	log.WithFields(logger.Fields{"attempt": attempt, "delay": delay.String()}).Warn("scheduling reconnect")

	timer := m.schedule(delay, func() { m.Connect(ctx) })
	m.mu.Lock()
	m.retryTimer = timer
	m.mu.Unlock()
}

// Subscribe sends a SUBSCRIBE frame for the given stream names. It only takes
// effect while the socket is Open; otherwise nothing is sent and the caller is
// expected to reissue from OnOpen after the next reconnect.
func (m *Manager) Subscribe(channels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.conn == nil {
		m.log.WithComponent("stream_manager").WithField("state", m.state.String()).Debug("subscribe ignored, socket not open")
		return nil
	}
	m.subID++
	req := struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int      `json:"id"`
	}{Method: "SUBSCRIBE", Params: channels, ID: m.subID}
	return m.conn.WriteJSON(req)
}

// Close tears down the socket and stops any pending reconnect. Wired to the
// process termination signals in main.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.pingCancel != nil {
		m.pingCancel()
		m.pingCancel = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateClosed
	m.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
	m.wg.Wait()
	m.log.WithComponent("stream_manager").Info("market data socket closed")
}

func (m *Manager) startPing(ctx context.Context, conn *websocket.Conn) context.CancelFunc {
	interval := m.config.Stream.PingInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	pingCtx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					m.log.WithComponent("stream_manager").WithError(err).Warn("failed to send websocket ping")
					cancel()
					return
				}
			}
		}
	}()
	return cancel
}
