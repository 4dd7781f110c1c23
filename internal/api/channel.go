package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/iksnae/hdt-console/internal"
)

var (
	errQueueFull     = errors.New("send queue full")
	errChannelClosed = errors.New("channel closed")
	errServerClosed  = errors.New("server closed the connection")
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// ChannelConfig configures the event channel
type ChannelConfig struct {
	URL            string
	Token          string
	Dialer         *websocket.Dialer
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	EventBuffer    int
	SendBuffer     int
}

// Channel is a persistent Socket.IO connection to the backend over the
// websocket transport. It reconnects with exponential backoff and delivers
// typed events on a single Go channel; outbound messages queue while
// disconnected and are flushed on Close.
type Channel struct {
	cfg    ChannelConfig
	url    string
	dialer *websocket.Dialer

	events chan Event
	send   chan envelope

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	subscriptions map[int]struct{}
}

// OpenChannel starts the connection loop and returns immediately. The
// first connection attempt is reported as an EventConnected or
// EventReconnecting.
func OpenChannel(ctx context.Context, cfg ChannelConfig) *Channel {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	endpoint, err := socketIOURL(cfg.URL)
	if err != nil {
		internal.LogWarn("Invalid event channel URL %q: %v", cfg.URL, err)
		endpoint = cfg.URL
	}

	runCtx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		cfg:           cfg,
		url:           endpoint,
		dialer:        dialer,
		events:        make(chan Event, cfg.EventBuffer),
		send:          make(chan envelope, cfg.SendBuffer),
		ctx:           runCtx,
		cancel:        cancel,
		done:          make(chan struct{}),
		subscriptions: make(map[int]struct{}),
	}
	go ch.run()
	return ch
}

// Events returns the delivery channel. It is closed after Close.
func (ch *Channel) Events() <-chan Event {
	return ch.events
}

// Emit queues an outbound event. It never blocks; a full queue or a closed
// channel is reported as a ChannelError.
func (ch *Channel) Emit(name string, data any) error {
	if ch.ctx.Err() != nil {
		return &internal.ChannelError{Op: "write", Err: errChannelClosed}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return &internal.ChannelError{Op: "write", Err: err}
	}
	select {
	case ch.send <- envelope{Event: name, Data: raw}:
		return nil
	default:
		return &internal.ChannelError{Op: "write", Err: errQueueFull}
	}
}

// SubscribeSession asks for live updates of a session. Fire-and-forget: the
// subscription is remembered and replayed after every reconnect.
func (ch *Channel) SubscribeSession(sessionID int) {
	ch.mu.Lock()
	ch.subscriptions[sessionID] = struct{}{}
	ch.mu.Unlock()
	if err := ch.Emit(OutSubscribeSession, map[string]int{"session_id": sessionID}); err != nil {
		internal.LogDebug("subscribe_session %d not queued: %v", sessionID, err)
	}
}

// UnsubscribeSession stops replaying a session subscription on reconnect
func (ch *Channel) UnsubscribeSession(sessionID int) {
	ch.mu.Lock()
	delete(ch.subscriptions, sessionID)
	ch.mu.Unlock()
}

// PublishPhysiological broadcasts a sample to other subscribers
func (ch *Channel) PublishPhysiological(sessionID int, sample internal.MetricsSample) error {
	return ch.Emit(OutPhysiologicalUpdate, physiologicalPayload{
		SessionID:     sessionID,
		HeartRate:     int(math.Round(sample.HeartRate)),
		StressLevel:   sample.StressLevel,
		CognitiveLoad: sample.CognitiveLoad,
		FatigueScore:  sample.FatigueScore,
		PostureScore:  sample.PostureScore,
	})
}

// PublishActivity broadcasts an activity sample to other subscribers
func (ch *Channel) PublishActivity(sample internal.ActivitySample) error {
	return ch.Emit(OutActivityUpdate, sample)
}

// Close stops the connection loop and waits for it to exit
func (ch *Channel) Close() {
	ch.cancel()
	<-ch.done
}

func (ch *Channel) run() {
	defer close(ch.done)
	defer close(ch.events)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ch.cfg.InitialBackoff
	b.MaxInterval = ch.cfg.MaxBackoff

	header := http.Header{}
	if ch.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+ch.cfg.Token)
	}

	attempt := 0
	for {
		conn, info, early, err := ch.connect(header)
		if err != nil {
			if ch.ctx.Err() != nil {
				return
			}
			attempt++
			delay := b.NextBackOff()
			if delay < 0 {
				delay = b.MaxInterval
			}
			internal.LogDebug("Event channel connect failed (attempt %d), retrying in %v: %v", attempt, delay, err)
			ch.deliver(Event{Type: EventReconnecting, Attempt: attempt, Delay: delay, Err: err})
			select {
			case <-ch.ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		b.Reset()
		attempt = 0
		internal.LogInfo("Event channel connected to %s (sid %s)", ch.url, info.SID)
		ch.deliver(Event{Type: EventConnected})
		for _, ev := range early {
			ch.deliver(ev)
		}
		ch.resubscribe()

		err = ch.serve(conn, info)
		if ch.ctx.Err() != nil {
			return
		}
		internal.LogWarn("Event channel disconnected: %v", err)
		ch.deliver(Event{Type: EventDisconnected, Err: err})
	}
}

// connect dials the endpoint and completes the Engine.IO and Socket.IO
// handshakes. Events the server sends before acknowledging the connect are
// returned so they can be delivered after EventConnected.
func (ch *Channel) connect(header http.Header) (*websocket.Conn, handshakeInfo, []Event, error) {
	conn, _, err := ch.dialer.DialContext(ch.ctx, ch.url, header)
	if err != nil {
		return nil, handshakeInfo{}, nil, &internal.ChannelError{Op: "dial", Err: err}
	}
	info, early, err := ch.handshake(conn)
	if err != nil {
		_ = conn.Close()
		return nil, handshakeInfo{}, nil, &internal.ChannelError{Op: "handshake", Err: err}
	}
	return conn, info, early, nil
}

func (ch *Channel) handshake(conn *websocket.Conn) (handshakeInfo, []Event, error) {
	stop := context.AfterFunc(ch.ctx, func() { _ = conn.Close() })
	defer stop()
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	p, err := readPacket(conn)
	if err != nil {
		return handshakeInfo{}, nil, err
	}
	if p.kind != packetOpen {
		return handshakeInfo{}, nil, errors.New("expected open packet")
	}
	info := p.open

	if err := writeFrame(conn, connectFrame(ch.cfg.Token)); err != nil {
		return handshakeInfo{}, nil, err
	}
	var early []Event
	for {
		p, err := readPacket(conn)
		if err != nil {
			return handshakeInfo{}, nil, err
		}
		switch p.kind {
		case packetConnect:
			return info, early, nil
		case packetConnectError:
			return handshakeInfo{}, nil, p.err
		case packetClose:
			return handshakeInfo{}, nil, errServerClosed
		case packetPing:
			if err := writeFrame(conn, pongFrame); err != nil {
				return handshakeInfo{}, nil, err
			}
		case packetEvent:
			early = append(early, parseEvent(p.env))
		}
	}
}

func readPacket(conn *websocket.Conn) (packet, error) {
	mt, data, err := conn.ReadMessage()
	if err != nil {
		return packet{}, err
	}
	if mt != websocket.TextMessage {
		return packet{kind: packetIgnored}, nil
	}
	return decodePacket(data)
}

func writeFrame(conn *websocket.Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// resubscribe queues the remembered subscriptions after a (re)connect
func (ch *Channel) resubscribe() {
	ch.mu.Lock()
	ids := make([]int, 0, len(ch.subscriptions))
	for id := range ch.subscriptions {
		ids = append(ids, id)
	}
	ch.mu.Unlock()
	for _, id := range ids {
		if err := ch.Emit(OutSubscribeSession, map[string]int{"session_id": id}); err != nil {
			internal.LogDebug("resubscribe %d not queued: %v", id, err)
		}
	}
}

// serve pumps one connection until it fails or the channel closes. The
// reader runs in its own goroutine; all writes happen here, including the
// pongs the reader asks for.
func (ch *Channel) serve(conn *websocket.Conn, info handshakeInfo) error {
	readErr := make(chan error, 1)
	pings := make(chan struct{}, 4)
	go func() {
		readErr <- ch.readLoop(conn, info.liveness(), pings)
	}()

	for {
		select {
		case <-ch.ctx.Done():
			ch.flush(conn)
			_ = writeFrame(conn, disconnectFrame)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			<-readErr
			return ch.ctx.Err()
		case err := <-readErr:
			_ = conn.Close()
			return err
		case <-pings:
			if err := writeFrame(conn, pongFrame); err != nil {
				_ = conn.Close()
				<-readErr
				return &internal.ChannelError{Op: "write", Err: err}
			}
		case env := <-ch.send:
			frame, err := encodeEvent(env)
			if err != nil {
				internal.LogWarn("Dropping unencodable %s event: %v", env.Event, err)
				continue
			}
			if err := writeFrame(conn, frame); err != nil {
				_ = conn.Close()
				<-readErr
				return &internal.ChannelError{Op: "write", Err: err}
			}
		}
	}
}

// flush writes whatever is still queued before a deliberate close
func (ch *Channel) flush(conn *websocket.Conn) {
	for {
		select {
		case env := <-ch.send:
			frame, err := encodeEvent(env)
			if err != nil {
				continue
			}
			if err := writeFrame(conn, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (ch *Channel) readLoop(conn *websocket.Conn, liveness time.Duration, pings chan<- struct{}) error {
	for {
		if liveness > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(liveness))
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return &internal.ChannelError{Op: "read", Err: err}
		}
		if mt != websocket.TextMessage {
			continue
		}
		p, err := decodePacket(data)
		if err != nil {
			internal.LogWarn("Dropping malformed packet: %v", err)
			continue
		}
		switch p.kind {
		case packetPing:
			select {
			case pings <- struct{}{}:
			default:
			}
		case packetClose:
			return &internal.ChannelError{Op: "read", Err: errServerClosed}
		case packetEvent:
			ev := parseEvent(p.env)
			switch ev.Type {
			case EventInvalid:
				internal.LogWarn("Dropping malformed %s event: %v", ev.Name, ev.Err)
			case EventUnknown:
				internal.LogDebug("Unhandled event %q", ev.Name)
			}
			ch.deliver(ev)
		}
	}
}

// deliver hands an event to the consumer, giving up only when the channel
// is closing
func (ch *Channel) deliver(ev Event) {
	select {
	case ch.events <- ev:
	case <-ch.ctx.Done():
	}
}

// Connect opens the client's event channel once. Later calls return the
// same channel.
func (c *Client) Connect(ctx context.Context) (*Channel, error) {
	token := c.Token()
	if token == "" {
		return nil, internal.ErrNotAuthenticated
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		return c.channel, nil
	}
	c.channel = OpenChannel(ctx, ChannelConfig{URL: c.wsURL, Token: token})
	return c.channel, nil
}

func (c *Client) currentChannel() *Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// SubscribeSession subscribes to a session's live updates if the channel is
// open. Fire-and-forget.
func (c *Client) SubscribeSession(sessionID int) {
	ch := c.currentChannel()
	if ch == nil {
		internal.LogDebug("No event channel; not subscribing to session %d", sessionID)
		return
	}
	ch.SubscribeSession(sessionID)
}

// UnsubscribeSession forgets a session subscription if the channel is open
func (c *Client) UnsubscribeSession(sessionID int) {
	if ch := c.currentChannel(); ch != nil {
		ch.UnsubscribeSession(sessionID)
	}
}

// PublishPhysiological broadcasts a sample if the channel is open. Without a
// channel it does nothing.
func (c *Client) PublishPhysiological(sessionID int, sample internal.MetricsSample) error {
	ch := c.currentChannel()
	if ch == nil {
		return nil
	}
	return ch.PublishPhysiological(sessionID, sample)
}

// PublishActivity broadcasts an activity sample if the channel is open
func (c *Client) PublishActivity(sample internal.ActivitySample) error {
	ch := c.currentChannel()
	if ch == nil {
		return nil
	}
	return ch.PublishActivity(sample)
}
