package models

// Twilio media stream event names.
const (
	TwilioEventConnected = "connected"
	TwilioEventStart     = "start"
	TwilioEventMedia     = "media"
	TwilioEventStop      = "stop"
	TwilioEventMark      = "mark"
)

// TwilioEvent is a single JSON frame received on the caller leg
type TwilioEvent struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	StreamSID      string       `json:"streamSid,omitempty"`
	Start          *TwilioStart `json:"start,omitempty"`
	Media          *TwilioMedia `json:"media,omitempty"`
}

// TwilioStart carries the identifiers announced once at the beginning of a stream
type TwilioStart struct {
	AccountSID       string            `json:"accountSid,omitempty"`
	StreamSID        string            `json:"streamSid,omitempty"`
	CallSID          string            `json:"callSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// TwilioMedia holds one base64 audio chunk
type TwilioMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// TwilioOutboundMedia is the envelope used to play model audio back to the caller
type TwilioOutboundMedia struct {
	Event     string              `json:"event"`
	StreamSID string              `json:"streamSid,omitempty"`
	Media     TwilioOutboundAudio `json:"media"`
}

// TwilioOutboundAudio carries one base64 mulaw chunk.
type TwilioOutboundAudio struct {
	Payload string `json:"payload"`
}
