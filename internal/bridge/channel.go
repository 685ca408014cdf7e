package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/n0remac/rtc-core/internal/rtcerrors"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

const (
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 60 * time.Second
)

// Dialer opens a new WebSocket connection to the SFU's bridge endpoint.
// The host process supplies this so package bridge never depends on how
// the URL is constructed or authenticated.
type Dialer func() (*websocket.Conn, error)

// ParticipantCounter reports how many participants remain in the session,
// consulted by the close-code-1001 retry exception in spec.md §4.4.
type ParticipantCounter func() int

// Channel is the Bridge Channel: one per RTC coordinator, carrying control
// messages to and from the SFU. Only the owning coordinator sends; any
// subscriber may receive dispatched events, mirroring the teacher's
// Hub/WebsocketClient split between a single writer and fan-out readers.
type Channel struct {
	mode Mode
	log  zerolog.Logger

	dialer       Dialer
	participants ParticipantCounter

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	dc             *webrtc.DataChannel
	closedByClient bool
	retryDelay     time.Duration
	retryTimer     *time.Timer

	send chan []byte // buffered, single writer goroutine in websocket mode

	bus *eventBus
}

// NewWebSocketChannel constructs a Channel that dials via d on Open and
// retries with exponential backoff on unexpected closes.
func NewWebSocketChannel(d Dialer, participants ParticipantCounter, log zerolog.Logger) *Channel {
	return &Channel{
		mode:         ModeWebSocket,
		log:          log,
		dialer:       d,
		participants: participants,
		state:        StateNull,
		retryDelay:   initialRetryDelay,
		send:         make(chan []byte, 256),
		bus:          newEventBus(),
	}
}

// NewDataChannelChannel constructs a Channel over an already-created
// WebRTC data channel. There is no retry in this mode; the data channel's
// lifecycle follows its owning peer connection.
func NewDataChannelChannel(dc *webrtc.DataChannel, log zerolog.Logger) *Channel {
	c := &Channel{
		mode:  ModeDataChannel,
		log:   log,
		dc:    dc,
		state: StateConnecting,
		bus:   newEventBus(),
	}
	c.wireDataChannel()
	return c
}

// Subscribe returns a channel of dispatched events and an unsubscribe
// function.
func (c *Channel) Subscribe() (<-chan Event, func()) {
	return c.bus.Subscribe()
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.bus.emit(Event{Kind: EventStateChanged, State: s})
	}
}

// Open starts the channel. In websocket mode it dials and, on failure,
// enters the retry loop; in data channel mode it is a no-op since the data
// channel's own OnOpen callback drives the state transition.
func (c *Channel) Open() {
	if c.mode != ModeWebSocket {
		return
	}
	c.setState(StateConnecting)
	c.dialOnce()
}

func (c *Channel) dialOnce() {
	c.mu.Lock()
	if c.state == StateConnecting && c.conn != nil {
		// Never spawn a new connection while the current socket is still
		// connecting, per spec.md §4.4's retry discipline.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	conn, err := c.dialer()
	if err != nil {
		c.log.Debug().Err(err).Msg("bridge channel dial failed")
		c.scheduleRetry(0)
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.retryDelay = initialRetryDelay
	c.mu.Unlock()

	c.setState(StateOpen)
	go c.writePump()
	go c.readPump()
}

// scheduleRetry arms the single outstanding retry timer, doubling the
// delay up to maxRetryDelay, per spec.md §4.4. closeCode is the WebSocket
// close code observed by readPump, or 0 when the retry originates from a
// failed dial rather than a close.
func (c *Channel) scheduleRetry(closeCode int) {
	c.mu.Lock()
	if c.closedByClient {
		c.mu.Unlock()
		return
	}
	if closeCode == websocket.CloseGoingAway && c.participants != nil && c.participants() <= 1 {
		// Graceful session-end close: the server sent 1001 and this
		// endpoint is the only participant left, so policy chooses not to
		// retry and stays silent (no data-channel-closed event) per
		// spec.md §8 scenario 6.
		c.mu.Unlock()
		c.setState(StateClosed)
		return
	}
	delay := c.retryDelay
	c.retryDelay = nextDelay(c.retryDelay)
	c.mu.Unlock()

	c.setState(StateRetrying)
	c.mu.Lock()
	c.retryTimer = time.AfterFunc(delay, c.dialOnce)
	c.mu.Unlock()
}

func nextDelay(d time.Duration) time.Duration {
	next := d * 2
	if next > maxRetryDelay {
		return maxRetryDelay
	}
	return next
}

// Close sets the client-initiated-close flag, stopping future retries, and
// tears down the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closedByClient = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	conn := c.conn
	dc := c.dc
	c.mu.Unlock()

	c.setState(StateClosing)
	var err error
	if conn != nil {
		err = conn.Close()
	}
	if dc != nil {
		err = dc.Close()
	}
	c.setState(StateClosed)
	return err
}

// Send serializes and enqueues a message for delivery. Serialization is
// synchronous; delivery is best-effort via the underlying transport, per
// spec.md §4.4.
func (c *Channel) Send(msg any) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateOpen {
		return rtcerrors.ErrChannelNotOpen
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal: %w", err)
	}

	switch c.mode {
	case ModeWebSocket:
		select {
		case c.send <- b:
		default:
			c.log.Warn().Msg("bridge channel send buffer full, dropping message")
		}
	case ModeDataChannel:
		if err := c.dc.Send(b); err != nil {
			return fmt.Errorf("bridge: data channel send: %w", err)
		}
	}
	return nil
}

func (c *Channel) writePump() {
	for b := range c.send {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel write failed")
			return
		}
	}
}

func (c *Channel) readPump() {
	conn := c.conn
	closeCode := 0
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			// Drop the finished socket so a later Open or retry dials anew.
			c.conn = nil
		}
		closedByClient := c.closedByClient
		c.mu.Unlock()
		if !closedByClient {
			_ = conn.Close()
		}
		if !closedByClient {
			c.scheduleRetry(closeCode)
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				closeCode = ce.Code
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Channel) wireDataChannel() {
	c.dc.OnOpen(func() {
		c.setState(StateOpen)
	})
	c.dc.OnClose(func() {
		c.setState(StateClosed)
	})
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.dispatch(msg.Data)
	})
}
