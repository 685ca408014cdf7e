package bridge

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/n0remac/rtc-core/internal/rtcerrors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestChannel() *Channel {
	return &Channel{
		mode:       ModeWebSocket,
		log:        zerolog.Nop(),
		state:      StateNull,
		retryDelay: initialRetryDelay,
		send:       make(chan []byte, 256),
		bus:        newEventBus(),
	}
}

func TestNextDelayDoublesUpToMax(t *testing.T) {
	d := initialRetryDelay
	seen := []time.Duration{d}
	for i := 0; i < 10; i++ {
		d = nextDelay(d)
		seen = append(seen, d)
	}
	for i := 1; i < len(seen); i++ {
		require.True(t, seen[i] >= seen[i-1], "retry delay must never decrease")
	}
	require.Equal(t, maxRetryDelay, seen[len(seen)-1])
}

func TestScheduleRetryDoesNothingAfterClientClose(t *testing.T) {
	c := newTestChannel()
	c.closedByClient = true
	c.scheduleRetry(websocket.CloseGoingAway)
	require.Equal(t, StateNull, c.State(), "a client-initiated close must suppress retries entirely")
}

func TestScheduleRetrySkipsWhenSoleParticipantRemainsAndCloseIs1001(t *testing.T) {
	c := newTestChannel()
	c.participants = func() int { return 1 }
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.scheduleRetry(websocket.CloseGoingAway)
	require.Equal(t, StateClosed, c.State())

	ev := <-events
	require.Equal(t, EventStateChanged, ev.Kind)
	require.Equal(t, StateClosed, ev.State)

	select {
	case ev := <-events:
		t.Fatalf("expected no further event for a graceful solo close, got %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestScheduleRetryWithSoleParticipantButNon1001CloseStillRetries(t *testing.T) {
	c := newTestChannel()
	c.participants = func() int { return 1 }
	c.scheduleRetry(websocket.CloseInternalServerErr)
	require.Equal(t, StateRetrying, c.State(), "only a 1001 close with a sole participant skips retry")
	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.mu.Unlock()
}

func TestScheduleRetryEntersRetryingWithMoreThanOneParticipant(t *testing.T) {
	c := newTestChannel()
	c.participants = func() int { return 2 }
	c.scheduleRetry(websocket.CloseGoingAway)
	require.Equal(t, StateRetrying, c.State())
	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.mu.Unlock()
}

func TestSendBeforeOpenFailsWithChannelNotOpen(t *testing.T) {
	c := newTestChannel()
	err := c.Send(LastNChangedEvent{ColibriClass: "LastNChangedEvent", LastN: 5})
	require.ErrorIs(t, err, rtcerrors.ErrChannelNotOpen)
}

func TestSendWhenOpenEnqueuesSerializedFrame(t *testing.T) {
	c := newTestChannel()
	c.setState(StateOpen)
	require.NoError(t, c.Send(LastNChangedEvent{ColibriClass: "LastNChangedEvent", LastN: 3}))

	select {
	case b := <-c.send:
		require.Contains(t, string(b), `"lastN":3`)
	default:
		t.Fatal("expected a frame on the send channel")
	}
}

func TestDispatchUnknownClassIsReemitted(t *testing.T) {
	c := newTestChannel()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.dispatch([]byte(`{"colibriClass":"SomeFutureClass","foo":"bar"}`))
	ev := <-events
	require.Equal(t, EventUnknownClassMessage, ev.Kind)
	require.Equal(t, "SomeFutureClass", ev.ClassName)
}

func TestDispatchForwardedSources(t *testing.T) {
	c := newTestChannel()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.dispatch([]byte(`{"colibriClass":"ForwardedSources","forwardedSources":["a","b"]}`))
	ev := <-events
	require.Equal(t, EventForwardedSourcesChanged, ev.Kind)
	require.Equal(t, []string{"a", "b"}, ev.Sources)
}

func TestDispatchMalformedFrameIsDiscardedNotPanicking(t *testing.T) {
	c := newTestChannel()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.dispatch([]byte(`not json at all`))
	select {
	case ev := <-events:
		t.Fatalf("expected no event for a malformed frame, got %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestDispatchEndpointMessage(t *testing.T) {
	c := newTestChannel()
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.dispatch([]byte(`{"colibriClass":"EndpointMessage","from":"alice","msgPayload":{"hello":1}}`))
	ev := <-events
	require.Equal(t, EventEndpointMessageReceived, ev.Kind)
	require.Equal(t, "alice", ev.From)
}
