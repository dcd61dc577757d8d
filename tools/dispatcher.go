package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/blkluv/dentist-ai/models"
)

// Failure codes returned to the model in {"ok":false,"error":code}.
const (
	CodeNotFound         = "not-found"
	CodeTimeout          = "timeout"
	CodeCanceled         = "canceled"
	CodeUnknownTool      = "unknown-tool"
	CodeInvalidArguments = "invalid-arguments"
	CodeFailed           = "failed"
)

const defaultTimeout = 10 * time.Second

// Notifier sends a text message and returns the transport's message id.
type Notifier interface {
	Notify(ctx context.Context, to, message string) (string, error)
}

// Error is a handler failure with a code the model can act on.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Handler runs one tool with its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Definition describes one callable function
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

type failureOutput struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Dispatcher routes function calls to their handlers. It holds no per-call
// state, so one instance can serve every concurrent session.
type Dispatcher struct {
	ref           *Reference
	notifier      Notifier
	timeout       time.Duration
	filterOptions bool
	logger        *slog.Logger

	defs  map[string]Definition
	order []string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds every handler invocation.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithOptionFiltering makes list_appointment_options honour its filters.
func WithOptionFiltering(enabled bool) Option {
	return func(dp *Dispatcher) { dp.filterOptions = enabled }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(dp *Dispatcher) {
		if logger != nil {
			dp.logger = logger
		}
	}
}

// NewDispatcher wires the four clinic tools. notifier may be nil, in which
// case booking skips the confirmation text and send_sms fails.
func NewDispatcher(ref *Reference, notifier Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ref:      ref,
		notifier: notifier,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
		defs:     make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, def := range []Definition{
		d.lookupDefinition(),
		d.listOptionsDefinition(),
		d.bookDefinition(),
		d.sendSMSDefinition(),
	} {
		d.register(def)
	}
	return d
}

func (d *Dispatcher) register(def Definition) {
	if _, dup := d.defs[def.Name]; !dup {
		d.order = append(d.order, def.Name)
	}
	d.defs[def.Name] = def
}

// Definitions returns the registered tools in declaration order.
func (d *Dispatcher) Definitions() []Definition {
	out := make([]Definition, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.defs[name])
	}
	return out
}

// FunctionDefinitions returns the tool schemas in the form the model declares them.
func (d *Dispatcher) FunctionDefinitions() []openai.FunctionDefinition {
	defs := d.Definitions()
	out := make([]openai.FunctionDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.FunctionDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.InputSchema,
		})
	}
	return out
}

// Dispatch runs the named tool and always returns exactly one result
// correlated to req.CallID. Unknown tools, bad arguments, handler errors,
// panics and timeouts all come back as failure-typed results.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.ToolCallRequest) models.ToolCallResult {
	logger := d.logger.With("tool", req.Name, "call_id", req.CallID)

	def, ok := d.defs[req.Name]
	if !ok {
		logger.Warn("unknown tool requested")
		return failureResult(req.CallID, &Error{Code: CodeUnknownTool, Message: req.Name})
	}

	args := req.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	// buffered so an abandoned handler can still finish and exit
	done := make(chan outcome, 1)
	started := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		v, err := def.Handler(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return d.expired(logger, req.CallID, ctx.Err())
		}
		if o.err != nil {
			logger.Warn("tool failed", "error", o.err, "elapsed", time.Since(started))
			return failureResult(req.CallID, o.err)
		}
		b, err := json.Marshal(o.value)
		if err != nil {
			logger.Error("marshal tool output", "error", err)
			return failureResult(req.CallID, err)
		}
		logger.Info("tool completed", "elapsed", time.Since(started))
		return models.ToolCallResult{CallID: req.CallID, Output: string(b)}
	case <-ctx.Done():
		return d.expired(logger, req.CallID, ctx.Err())
	}
}

func (d *Dispatcher) expired(logger *slog.Logger, callID string, cause error) models.ToolCallResult {
	code := CodeTimeout
	if !errors.Is(cause, context.DeadlineExceeded) {
		code = CodeCanceled
	}
	logger.Warn("tool did not finish", "reason", code, "timeout", d.timeout)
	return failureResult(callID, &Error{Code: code})
}

func failureResult(callID string, err error) models.ToolCallResult {
	out := failureOutput{Error: CodeFailed, Message: err.Error()}
	var te *Error
	if errors.As(err, &te) {
		out.Error = te.Code
		out.Message = te.Message
	}
	b, _ := json.Marshal(out)
	return models.ToolCallResult{CallID: callID, Output: string(b), Failed: true}
}

func decodeArgs(args json.RawMessage, into any) error {
	if err := json.Unmarshal(args, into); err != nil {
		return &Error{Code: CodeInvalidArguments, Message: err.Error()}
	}
	return nil
}
