package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blkluv/dentist-ai/models"
	"github.com/blkluv/dentist-ai/services"
)

// ModelConnector negotiates a realtime session and opens its stream.
// *services.RealtimeClient is the production implementation.
type ModelConnector interface {
	Negotiate(ctx context.Context) (models.RealtimeSessionResponse, error)
	Dial(ctx context.Context, secret string) (*websocket.Conn, error)
}

// NegotiationOutcome enumerates how opening the model leg can end.
type NegotiationOutcome int

const (
	NegotiationOK NegotiationOutcome = iota
	// NegotiationRejected: the negotiation endpoint answered with a non-success status.
	NegotiationRejected
	// NegotiationFailed: the request never produced a usable answer.
	NegotiationFailed
	// NegotiationDialFailed: negotiation succeeded but the stream could not be opened.
	NegotiationDialFailed
	// NegotiationCanceled: the session ended before the model leg was ready.
	NegotiationCanceled
)

func (o NegotiationOutcome) String() string {
	switch o {
	case NegotiationOK:
		return "ok"
	case NegotiationRejected:
		return "rejected"
	case NegotiationFailed:
		return "failed"
	case NegotiationDialFailed:
		return "dial_failed"
	case NegotiationCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// NegotiationResult is the typed outcome of the NEGOTIATING state.
// Leg is set only when Outcome is NegotiationOK.
type NegotiationResult struct {
	Outcome NegotiationOutcome
	Leg     *ModelLeg
	Err     error
}

// OpenModelLeg negotiates a session and dials the stream with the returned
// credential. It does not retry. The returned leg is not started yet.
func OpenModelLeg(ctx context.Context, connector ModelConnector, keepalive time.Duration, logger *slog.Logger) NegotiationResult {
	session, err := connector.Negotiate(ctx)
	if err != nil {
		return NegotiationResult{Outcome: classifyNegotiation(ctx, err), Err: err}
	}

	ws, err := connector.Dial(ctx, session.ClientSecret.Value)
	if err != nil {
		outcome := NegotiationDialFailed
		if ctx.Err() != nil {
			outcome = NegotiationCanceled
		}
		return NegotiationResult{Outcome: outcome, Err: err}
	}

	leg := &ModelLeg{conn: services.NewConn("model", ws, keepalive, logger)}
	if ctx.Err() != nil {
		leg.Close()
		return NegotiationResult{Outcome: NegotiationCanceled, Err: ctx.Err()}
	}
	return NegotiationResult{Outcome: NegotiationOK, Leg: leg}
}

func classifyNegotiation(ctx context.Context, err error) NegotiationOutcome {
	var negErr *services.NegotiationError
	switch {
	case errors.As(err, &negErr):
		return NegotiationRejected
	case ctx.Err() != nil:
		return NegotiationCanceled
	default:
		return NegotiationFailed
	}
}

// ModelLeg is the model side of the bridge.
type ModelLeg struct {
	conn *services.Conn
}

// Start begins reading model events.
func (m *ModelLeg) Start() { m.conn.Start() }

// Incoming yields raw model events until the leg closes.
func (m *ModelLeg) Incoming() <-chan []byte { return m.conn.Incoming() }

// Greet asks the model to speak first so the caller doesn't sit in silence.
func (m *ModelLeg) Greet() error {
	return m.RequestResponse(&models.RealtimeResponseOptions{
		Instructions: services.GreetingDirective,
		Modalities:   []string{"audio", "text"},
	})
}

// AppendAudio forwards one caller audio chunk to the input buffer.
func (m *ModelLeg) AppendAudio(payload string) error {
	return m.conn.Send(models.RealtimeAudioAppend{Type: models.RealtimeInputAudioAppend, Audio: payload})
}

// Commit closes the current input audio buffer.
func (m *ModelLeg) Commit() error {
	return m.conn.Send(models.RealtimeControl{Type: models.RealtimeInputAudioCommit})
}

// RequestResponse asks the model to respond. opts may be nil.
func (m *ModelLeg) RequestResponse(opts *models.RealtimeResponseOptions) error {
	return m.conn.Send(models.RealtimeResponseRequest{Type: models.RealtimeResponseCreate, Response: opts})
}

// SendToolResult returns a function output under the call's id.
func (m *ModelLeg) SendToolResult(res models.ToolCallResult) error {
	return m.conn.Send(models.RealtimeFunctionOutput{
		Type:   models.RealtimeFunctionCallOutput,
		CallID: res.CallID,
		Output: res.Output,
	})
}

// Err reports why the leg closed.
func (m *ModelLeg) Err() error { return m.conn.Err() }

// Close is idempotent.
func (m *ModelLeg) Close() { m.conn.Close() }

type modelEventKind int

const (
	modelEventIgnored modelEventKind = iota
	modelEventAudio
	modelEventFunctionCall
	modelEventError
)

type modelEvent struct {
	kind  modelEventKind
	audio string
	call  models.ToolCallRequest
	raw   models.RealtimeServerEvent
}

// parseModelEvent classifies one model-leg frame. Unparseable frames and
// function calls that can't be correlated are errors; unknown event types
// are returned as ignored.
func parseModelEvent(raw []byte) (modelEvent, error) {
	var ev models.RealtimeServerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return modelEvent{}, err
	}
	switch ev.Type {
	case models.RealtimeAudioDelta, models.RealtimeResponseAudioDelta, models.RealtimeResponseOutputAudio:
		return modelEvent{kind: modelEventAudio, audio: ev.AudioPayload(), raw: ev}, nil
	case models.RealtimeFunctionCall, models.RealtimeFunctionCallArgsDone:
		if ev.CallID == "" || ev.Name == "" {
			return modelEvent{}, errors.New("function call without call_id or name")
		}
		return modelEvent{
			kind: modelEventFunctionCall,
			call: models.ToolCallRequest{Name: ev.Name, Arguments: json.RawMessage(ev.Arguments), CallID: ev.CallID},
			raw:  ev,
		}, nil
	case models.RealtimeError:
		return modelEvent{kind: modelEventError, raw: ev}, nil
	default:
		return modelEvent{kind: modelEventIgnored, raw: ev}, nil
	}
}
