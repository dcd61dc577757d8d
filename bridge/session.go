package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blkluv/dentist-ai/models"
	"github.com/blkluv/dentist-ai/services"
)

var (
	// ErrCallLegClosed ends a session when the caller side goes away.
	ErrCallLegClosed = errors.New("call leg closed")
	// ErrModelLegClosed ends a session when the model side goes away.
	ErrModelLegClosed = errors.New("model leg closed")
)

const recordTimeout = 5 * time.Second

// Dispatcher runs one tool call and always returns its correlated result.
type Dispatcher interface {
	Dispatch(ctx context.Context, req models.ToolCallRequest) models.ToolCallResult
}

// RecordSink receives the audit record of every finished session.
type RecordSink interface {
	SaveCallRecord(ctx context.Context, record models.CallRecord) error
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Connector  ModelConnector
	Dispatcher Dispatcher
	Sink       RecordSink
	Keepalive  time.Duration
	Logger     *slog.Logger
}

// Session coordinates one phone call. A single goroutine (Run) owns all
// session state and selects over the caller leg, the model leg and the
// tool-result channel; tool calls run on their own goroutines and report
// back over that channel.
type Session struct {
	ID string

	state  atomic.Int32
	deps   Deps
	logger *slog.Logger

	call  *CallLeg
	model *ModelLeg

	cancel      context.CancelFunc
	toolResults chan models.ToolCallResult
	toolWG      sync.WaitGroup

	record models.CallRecord
}

// NewSession wraps an accepted caller connection. The session is in
// INITIALIZING until Run is called.
func NewSession(ws *websocket.Conn, deps Deps) *Session {
	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	s := &Session{
		ID:          id,
		deps:        deps,
		logger:      logger,
		call:        NewCallLeg(services.NewConn("call", ws, deps.Keepalive, logger)),
		toolResults: make(chan models.ToolCallResult),
		record:      models.CallRecord{SessionID: id, StartTime: time.Now().UTC()},
	}
	s.state.Store(int32(StateInitializing))
	return s
}

// State is safe to call from any goroutine.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.logger.Debug("session state", "from", prev.String(), "to", next.String())
	}
}

// Run drives the session to CLOSED and returns why it ended. A caller
// hanging up returns ErrCallLegClosed.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	s.call.conn.Start()
	s.logger.Info("call leg accepted")

	err := s.negotiate(ctx)
	if err == nil {
		err = s.relay(ctx)
	}
	s.shutdown(err)
	return err
}

// negotiate opens the model leg while continuing to read the caller leg, so
// a hang-up during negotiation is noticed and the start event is recorded.
func (s *Session) negotiate(ctx context.Context) error {
	s.setState(StateNegotiating)

	negCtx, negCancel := context.WithCancel(ctx)
	defer negCancel()

	// s.logger is replaced when start arrives, so the goroutine gets its own copy.
	logger := s.logger
	connector, keepalive := s.deps.Connector, s.deps.Keepalive
	results := make(chan NegotiationResult, 1)
	go func() {
		results <- OpenModelLeg(negCtx, connector, keepalive, logger)
	}()

	abandon := func() {
		negCancel()
		if res := <-results; res.Leg != nil {
			res.Leg.Close()
		}
	}

	callIn := s.call.Incoming()
	for {
		select {
		case res := <-results:
			if res.Outcome != NegotiationOK {
				s.logger.Error("model leg negotiation failed", "outcome", res.Outcome.String(), "error", res.Err)
				return fmt.Errorf("negotiation %s: %w", res.Outcome, res.Err)
			}
			s.model = res.Leg
			return nil
		case raw, ok := <-callIn:
			if !ok {
				abandon()
				return ErrCallLegClosed
			}
			s.handleCallFrame(raw)
		case <-ctx.Done():
			abandon()
			return ctx.Err()
		}
	}
}

func (s *Session) relay(ctx context.Context) error {
	s.model.Start()
	s.setState(StateActive)
	s.record.ReachedActive = true
	s.logger.Info("model leg open, relaying")

	if err := s.model.Greet(); err != nil {
		s.logger.Warn("greeting not sent", "error", err)
	}

	callIn := s.call.Incoming()
	modelIn := s.model.Incoming()
	for {
		select {
		case raw, ok := <-callIn:
			if !ok {
				return ErrCallLegClosed
			}
			s.handleCallFrame(raw)
		case raw, ok := <-modelIn:
			if !ok {
				return ErrModelLegClosed
			}
			s.handleModelFrame(ctx, raw)
		case res := <-s.toolResults:
			s.sendToolResult(res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) handleCallFrame(raw []byte) {
	ev, err := ParseCallEvent(raw)
	if err != nil {
		s.logger.Debug("discarding caller frame", "error", err)
		return
	}

	switch ev.Event {
	case models.TwilioEventStart:
		s.record.CallSID = ev.Start.CallSID
		s.record.StreamSID = ev.Start.StreamSID
		s.call.streamSID = ev.Start.StreamSID
		s.logger = s.logger.With("call_sid", ev.Start.CallSID, "stream_sid", ev.Start.StreamSID)
		s.logger.Info("media stream started", "parameters", ev.Start.CustomParameters)
	case models.TwilioEventMedia:
		if s.State() != StateActive {
			return
		}
		s.relayAudio(models.AudioFrame{Payload: ev.Media.Payload, Direction: models.CallerToModel})
	case models.TwilioEventStop:
		if s.State() != StateActive {
			s.logger.Debug("stop before model leg is active, ignoring")
			return
		}
		s.record.Commits++
		if err := s.model.Commit(); err != nil {
			s.logger.Debug("commit not sent", "error", err)
			return
		}
		if err := s.model.RequestResponse(nil); err != nil {
			s.logger.Debug("response request not sent", "error", err)
		}
	}
}

func (s *Session) handleModelFrame(ctx context.Context, raw []byte) {
	ev, err := parseModelEvent(raw)
	if err != nil {
		s.logger.Debug("discarding model frame", "error", err)
		return
	}

	switch ev.kind {
	case modelEventAudio:
		s.relayAudio(models.AudioFrame{Payload: ev.audio, Direction: models.ModelToCaller})
	case modelEventFunctionCall:
		s.record.ToolCalls++
		s.dispatch(ctx, ev.call)
	case modelEventError:
		attrs := []any{"event_id", ev.raw.EventID}
		if ev.raw.Error != nil {
			attrs = append(attrs, "code", ev.raw.Error.Code, "message", ev.raw.Error.Message)
		}
		s.logger.Warn("model reported error", attrs...)
	}
}

func (s *Session) relayAudio(frame models.AudioFrame) {
	var err error
	switch frame.Direction {
	case models.CallerToModel:
		s.record.MediaFramesIn++
		err = s.model.AppendAudio(frame.Payload)
	case models.ModelToCaller:
		s.record.AudioFramesOut++
		err = s.call.SendAudio(frame.Payload)
	}
	if err != nil {
		s.logger.Debug("audio frame dropped", "direction", frame.Direction.String(), "error", err)
	}
}

// dispatch runs the tool on its own goroutine; the result comes back on toolResults.
func (s *Session) dispatch(ctx context.Context, req models.ToolCallRequest) {
	s.logger.Info("tool call", "tool", req.Name, "call_id", req.CallID)
	s.toolWG.Add(1)
	go func() {
		defer s.toolWG.Done()
		res := s.deps.Dispatcher.Dispatch(ctx, req)
		select {
		case s.toolResults <- res:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) sendToolResult(res models.ToolCallResult) {
	if err := s.model.SendToolResult(res); err != nil {
		s.logger.Warn("tool result not sent", "call_id", res.CallID, "error", err)
		return
	}
	if err := s.model.RequestResponse(nil); err != nil {
		s.logger.Debug("response request not sent", "error", err)
	}
}

// shutdown closes both legs, which stops their keepalives, waits for
// in-flight tool calls and emits the call record.
func (s *Session) shutdown(cause error) {
	s.setState(StateClosing)
	s.cancel()
	// read before Close, which would report ErrConnClosed
	legErrs := []any{"call_leg", s.call.Err()}
	s.call.Close()
	if s.model != nil {
		legErrs = append(legErrs, "model_leg", s.model.Err())
		s.model.Close()
	}
	s.toolWG.Wait()
	s.setState(StateClosed)

	s.record.EndTime = time.Now().UTC()
	s.record.DurationSecs = int(s.record.EndTime.Sub(s.record.StartTime).Seconds())
	s.record.CloseReason = closeReason(cause)
	s.logger.Info("session closed", "reason", s.record.CloseReason, "duration_secs", s.record.DurationSecs,
		"media_in", s.record.MediaFramesIn, "audio_out", s.record.AudioFramesOut, "tool_calls", s.record.ToolCalls)
	s.logger.Debug("leg close causes", legErrs...)

	if s.deps.Sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.deps.Sink.SaveCallRecord(ctx, s.record); err != nil {
		s.logger.Warn("call record not saved", "error", err)
	}
}

// Record returns the session's audit record. It is complete once Run has returned.
func (s *Session) Record() models.CallRecord {
	return s.record
}

func closeReason(cause error) string {
	switch {
	case cause == nil:
		return "closed"
	case errors.Is(cause, ErrCallLegClosed):
		return "caller hung up"
	case errors.Is(cause, ErrModelLegClosed):
		return "model leg closed"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return "shutdown"
	default:
		return "negotiation failed"
	}
}
