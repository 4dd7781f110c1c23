package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// The backend speaks Socket.IO (protocol 5) over Engine.IO (protocol 4)
// using the websocket transport. Every websocket text frame carries one
// Engine.IO packet; Socket.IO packets ride inside Engine.IO messages.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'

	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var (
	pongFrame       = []byte{eioPong}
	disconnectFrame = []byte{eioMessage, sioDisconnect}
)

type packetKind int

const (
	packetIgnored packetKind = iota
	packetOpen
	packetClose
	packetPing
	packetConnect
	packetConnectError
	packetEvent
)

// packet is one decoded frame
type packet struct {
	kind packetKind
	open handshakeInfo
	env  envelope
	err  error
}

// handshakeInfo is the Engine.IO open packet payload
type handshakeInfo struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // milliseconds
	PingTimeout  int    `json:"pingTimeout"`
}

// liveness is how long the connection may stay silent before the server
// is considered gone: one ping interval plus the ping timeout
func (h handshakeInfo) liveness() time.Duration {
	if h.PingInterval <= 0 {
		return 0
	}
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

// socketIOURL turns a websocket base URL into the Engine.IO endpoint. A
// URL without a path gets the default /socket.io/ mount.
func socketIOURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// connectFrame asks to join the default namespace, passing the token as
// auth data
func connectFrame(token string) []byte {
	frame := []byte{eioMessage, sioConnect}
	if token == "" {
		return frame
	}
	auth, _ := json.Marshal(map[string]string{"token": token})
	return append(frame, auth...)
}

// encodeEvent frames an outbound event as 42["name",data]
func encodeEvent(env envelope) ([]byte, error) {
	args := []any{env.Event}
	if len(env.Data) > 0 {
		args = append(args, env.Data)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return append([]byte{eioMessage, sioEvent}, body...), nil
}

// decodePacket parses one Engine.IO frame
func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errors.New("empty packet")
	}
	payload := frame[1:]
	switch frame[0] {
	case eioOpen:
		var info handshakeInfo
		if err := json.Unmarshal(payload, &info); err != nil {
			return packet{}, fmt.Errorf("open packet: %w", err)
		}
		return packet{kind: packetOpen, open: info}, nil
	case eioClose:
		return packet{kind: packetClose}, nil
	case eioPing:
		return packet{kind: packetPing}, nil
	case eioPong, eioNoop:
		return packet{kind: packetIgnored}, nil
	case eioMessage:
		return decodeSocketPacket(payload)
	}
	return packet{kind: packetIgnored}, nil
}

func decodeSocketPacket(p []byte) (packet, error) {
	if len(p) == 0 {
		return packet{}, errors.New("empty message packet")
	}
	body := skipNamespace(p[1:])
	switch p[0] {
	case sioConnect:
		return packet{kind: packetConnect}, nil
	case sioDisconnect:
		return packet{kind: packetClose}, nil
	case sioConnectError:
		var data struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &data) == nil && data.Message != "" {
			msg = data.Message
		}
		return packet{kind: packetConnectError, err: fmt.Errorf("connect refused: %s", msg)}, nil
	case sioEvent:
		// an ack id may precede the arguments
		body = bytes.TrimLeft(body, "0123456789")
		var args []json.RawMessage
		if err := json.Unmarshal(body, &args); err != nil {
			return packet{}, fmt.Errorf("event packet: %w", err)
		}
		if len(args) == 0 {
			return packet{}, errors.New("event packet without a name")
		}
		var env envelope
		if err := json.Unmarshal(args[0], &env.Event); err != nil {
			return packet{}, fmt.Errorf("event name: %w", err)
		}
		if len(args) > 1 {
			env.Data = args[1]
		}
		return packet{kind: packetEvent, env: env}, nil
	}
	return packet{kind: packetIgnored}, nil
}

// skipNamespace drops a leading "/nsp," from a Socket.IO packet body
func skipNamespace(b []byte) []byte {
	if len(b) == 0 || b[0] != '/' {
		return b
	}
	if i := bytes.IndexByte(b, ','); i >= 0 {
		return b[i+1:]
	}
	return nil
}
