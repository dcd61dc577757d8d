package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blkluv/dentist-ai/models"
	"github.com/blkluv/dentist-ai/services"
)

var errUnknownCallEvent = errors.New("unknown call event")

// ParseCallEvent decodes one caller-leg frame. Frames that are not JSON,
// carry an unknown event name, or a media event without a media body are
// rejected so the caller can discard them.
func ParseCallEvent(raw []byte) (models.TwilioEvent, error) {
	var ev models.TwilioEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return models.TwilioEvent{}, err
	}
	switch ev.Event {
	case models.TwilioEventStart:
		if ev.Start == nil {
			ev.Start = &models.TwilioStart{}
		}
		if ev.Start.StreamSID == "" {
			ev.Start.StreamSID = ev.StreamSID
		}
	case models.TwilioEventMedia:
		if ev.Media == nil {
			return models.TwilioEvent{}, errors.New("media event without media")
		}
	case models.TwilioEventStop, models.TwilioEventConnected, models.TwilioEventMark:
	default:
		return models.TwilioEvent{}, fmt.Errorf("%w: %q", errUnknownCallEvent, ev.Event)
	}
	return ev, nil
}

// CallLeg is the caller side of the bridge.
type CallLeg struct {
	conn      *services.Conn
	streamSID string
}

// NewCallLeg wraps the accepted media stream connection.
func NewCallLeg(conn *services.Conn) *CallLeg {
	return &CallLeg{conn: conn}
}

// Incoming yields raw media stream events until the caller hangs up.
func (l *CallLeg) Incoming() <-chan []byte { return l.conn.Incoming() }

// SendAudio plays a model audio chunk back to the caller. Chunks go out in
// the order SendAudio is called.
func (l *CallLeg) SendAudio(payload string) error {
	return l.conn.Send(models.TwilioOutboundMedia{
		Event:     models.TwilioEventMedia,
		StreamSID: l.streamSID,
		Media:     models.TwilioOutboundAudio{Payload: payload},
	})
}

// Err reports why the leg closed.
func (l *CallLeg) Err() error { return l.conn.Err() }

// Close is idempotent.
func (l *CallLeg) Close() { l.conn.Close() }
