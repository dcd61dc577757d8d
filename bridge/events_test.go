package bridge

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/blkluv/dentist-ai/models"
	"github.com/blkluv/dentist-ai/services"
)

func TestParseCallEvent(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
		event   string
	}{
		{name: "connected", raw: `{"event":"connected","protocol":"Call"}`, event: "connected"},
		{name: "start", raw: `{"event":"start","streamSid":"MZ1","start":{"callSid":"CA1"}}`, event: "start"},
		{name: "media", raw: `{"event":"media","media":{"payload":"AAA"}}`, event: "media"},
		{name: "stop", raw: `{"event":"stop"}`, event: "stop"},
		{name: "mark", raw: `{"event":"mark"}`, event: "mark"},
		{name: "media without body", raw: `{"event":"media"}`, wantErr: true},
		{name: "unknown event", raw: `{"event":"dtmf"}`, wantErr: true},
		{name: "not json", raw: `hello`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParseCallEvent([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCallEvent: %v", err)
			}
			if ev.Event != tc.event {
				t.Fatalf("event=%q, want %q", ev.Event, tc.event)
			}
		})
	}
}

func TestParseCallEvent_StartInheritsStreamSID(t *testing.T) {
	ev, err := ParseCallEvent([]byte(`{"event":"start","streamSid":"MZ9","start":{"callSid":"CA9"}}`))
	if err != nil {
		t.Fatalf("ParseCallEvent: %v", err)
	}
	if ev.Start.StreamSID != "MZ9" || ev.Start.CallSID != "CA9" {
		t.Fatalf("start=%+v", ev.Start)
	}

	ev, err = ParseCallEvent([]byte(`{"event":"start"}`))
	if err != nil || ev.Start == nil {
		t.Fatalf("bare start: ev=%+v err=%v", ev, err)
	}
	if !errors.Is(func() error { _, err := ParseCallEvent([]byte(`{"event":"x"}`)); return err }(), errUnknownCallEvent) {
		t.Fatalf("unknown events should wrap errUnknownCallEvent")
	}
}

func TestParseModelEvent(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		kind    modelEventKind
		wantErr bool
	}{
		{name: "audio", raw: `{"type":"audio.delta","audio":"AAA"}`, kind: modelEventAudio},
		{name: "response audio", raw: `{"type":"response.audio.delta","delta":"AAA"}`, kind: modelEventAudio},
		{name: "output audio", raw: `{"type":"response.output_audio.delta","delta":"AAA"}`, kind: modelEventAudio},
		{name: "function call", raw: `{"type":"response.function_call","name":"send_sms","arguments":"{}","call_id":"c1"}`, kind: modelEventFunctionCall},
		{name: "arguments done", raw: `{"type":"response.function_call_arguments.done","name":"send_sms","arguments":"{}","call_id":"c1"}`, kind: modelEventFunctionCall},
		{name: "error", raw: `{"type":"error","error":{"message":"boom"}}`, kind: modelEventError},
		{name: "other", raw: `{"type":"response.done"}`, kind: modelEventIgnored},
		{name: "missing call id", raw: `{"type":"response.function_call","name":"send_sms"}`, wantErr: true},
		{name: "missing name", raw: `{"type":"response.function_call","call_id":"c1"}`, wantErr: true},
		{name: "garbage", raw: `[1,2`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := parseModelEvent([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseModelEvent: %v", err)
			}
			if ev.kind != tc.kind {
				t.Fatalf("kind=%d, want %d", ev.kind, tc.kind)
			}
			if ev.kind == modelEventAudio && ev.audio != "AAA" {
				t.Fatalf("audio=%q", ev.audio)
			}
			if ev.kind == modelEventFunctionCall && (ev.call.CallID != "c1" || ev.call.Name != "send_sms") {
				t.Fatalf("call=%+v", ev.call)
			}
		})
	}
}

type scriptedConnector struct {
	negErr  error
	dialErr error
}

func (c scriptedConnector) Negotiate(context.Context) (models.RealtimeSessionResponse, error) {
	if c.negErr != nil {
		return models.RealtimeSessionResponse{}, c.negErr
	}
	return models.RealtimeSessionResponse{ClientSecret: models.RealtimeClientSecret{Value: "ek"}}, nil
}

func (c scriptedConnector) Dial(context.Context, string) (*websocket.Conn, error) {
	return nil, c.dialErr
}

func TestOpenModelLeg_Outcomes(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name string
		ctx  context.Context
		conn scriptedConnector
		want NegotiationOutcome
	}{
		{name: "rejected", ctx: context.Background(), conn: scriptedConnector{negErr: &services.NegotiationError{StatusCode: http.StatusForbidden}}, want: NegotiationRejected},
		{name: "transport", ctx: context.Background(), conn: scriptedConnector{negErr: errors.New("connection refused")}, want: NegotiationFailed},
		{name: "canceled", ctx: canceled, conn: scriptedConnector{negErr: context.Canceled}, want: NegotiationCanceled},
		{name: "dial", ctx: context.Background(), conn: scriptedConnector{dialErr: errors.New("bad handshake")}, want: NegotiationDialFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := OpenModelLeg(tc.ctx, tc.conn, 0, nil)
			if res.Outcome != tc.want {
				t.Fatalf("outcome=%s, want %s", res.Outcome, tc.want)
			}
			if res.Leg != nil || res.Err == nil {
				t.Fatalf("failed negotiation returned leg=%v err=%v", res.Leg, res.Err)
			}
		})
	}
}
