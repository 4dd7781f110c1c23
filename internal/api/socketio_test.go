package api

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSocketIOURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantBase string
	}{
		{"mount added", "ws://localhost:5000", "ws://localhost:5000/socket.io/"},
		{"bare slash", "wss://twin.example.com/", "wss://twin.example.com/socket.io/"},
		{"explicit mount kept", "ws://host/socket.io/", "ws://host/socket.io/"},
		{"custom path kept", "ws://host/rt/socket.io/", "ws://host/rt/socket.io/"},
		{"http upgraded", "http://host:8080", "ws://host:8080/socket.io/"},
		{"https upgraded", "https://host", "wss://host/socket.io/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := socketIOURL(tt.raw)
			if err != nil {
				t.Fatalf("socketIOURL() error = %v", err)
			}
			u, _ := url.Parse(got)
			if base := u.Scheme + "://" + u.Host + u.Path; base != tt.wantBase {
				t.Errorf("base = %q, want %q", base, tt.wantBase)
			}
			if q := u.Query(); q.Get("EIO") != "4" || q.Get("transport") != "websocket" {
				t.Errorf("query = %q, want EIO=4 and transport=websocket", u.RawQuery)
			}
		})
	}
}

func TestConnectFrame(t *testing.T) {
	if got := string(connectFrame("")); got != "40" {
		t.Errorf("connectFrame(\"\") = %q, want 40", got)
	}
	got := string(connectFrame("abc"))
	if got != `40{"token":"abc"}` {
		t.Errorf("connectFrame(abc) = %q", got)
	}
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent(envelope{Event: "subscribe_session", Data: json.RawMessage(`{"session_id":4}`)})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(frame); got != `42["subscribe_session",{"session_id":4}]` {
		t.Errorf("encodeEvent() = %q", got)
	}

	bare, _ := encodeEvent(envelope{Event: "ping_me"})
	if got := string(bare); got != `42["ping_me"]` {
		t.Errorf("encodeEvent() without data = %q", got)
	}
}

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantKind  packetKind
		wantEvent string
		wantData  string
		wantErr   string
	}{
		{"open", `0{"sid":"a1","pingInterval":25000,"pingTimeout":20000}`, packetOpen, "", "", ""},
		{"close", "1", packetClose, "", "", ""},
		{"ping", "2", packetPing, "", "", ""},
		{"pong", "3", packetIgnored, "", "", ""},
		{"noop", "6", packetIgnored, "", "", ""},
		{"connect ack", `40{"sid":"x"}`, packetConnect, "", "", ""},
		{"namespaced connect ack", `40/admin,{"sid":"x"}`, packetConnect, "", "", ""},
		{"disconnect", "41", packetClose, "", "", ""},
		{"event", `42["physiological_data",{"session_id":3}]`, packetEvent, "physiological_data", `{"session_id":3}`, ""},
		{"event with ack id", `4217["subscription_confirmed",{"session_id":1}]`, packetEvent, "subscription_confirmed", `{"session_id":1}`, ""},
		{"namespaced event", `42/admin,["connection_response",{"status":"connected"}]`, packetEvent, "connection_response", `{"status":"connected"}`, ""},
		{"event without data", `42["hello"]`, packetEvent, "hello", "", ""},
		{"empty", "", 0, "", "", "empty packet"},
		{"bad open", "0{", 0, "", "", "open packet"},
		{"event not an array", `42{"event":"x"}`, 0, "", "", "event packet"},
		{"event without name", `42[]`, 0, "", "", "without a name"},
		{"numeric name", `42[5,{}]`, 0, "", "", "event name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodePacket([]byte(tt.frame))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("decodePacket() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodePacket() error = %v", err)
			}
			if p.kind != tt.wantKind {
				t.Fatalf("kind = %d, want %d", p.kind, tt.wantKind)
			}
			if p.env.Event != tt.wantEvent {
				t.Errorf("event = %q, want %q", p.env.Event, tt.wantEvent)
			}
			if string(p.env.Data) != tt.wantData {
				t.Errorf("data = %s, want %s", p.env.Data, tt.wantData)
			}
		})
	}
}

func TestDecodePacket_OpenLiveness(t *testing.T) {
	p, err := decodePacket([]byte(`0{"sid":"a1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.open.SID != "a1" {
		t.Errorf("SID = %q", p.open.SID)
	}
	if got := p.open.liveness(); got != 45*time.Second {
		t.Errorf("liveness() = %v, want 45s", got)
	}
	if got := (handshakeInfo{}).liveness(); got != 0 {
		t.Errorf("liveness() without interval = %v, want 0", got)
	}
}

func TestDecodePacket_ConnectError(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`44{"message":"Not authorized"}`, "connect refused: Not authorized"},
		{`44"bad token"`, `connect refused: "bad token"`},
	}
	for _, tt := range tests {
		p, err := decodePacket([]byte(tt.frame))
		if err != nil {
			t.Fatalf("decodePacket(%s) error = %v", tt.frame, err)
		}
		if p.kind != packetConnectError || p.err == nil || p.err.Error() != tt.want {
			t.Errorf("decodePacket(%s) = kind %d err %v, want %q", tt.frame, p.kind, p.err, tt.want)
		}
	}
}
