package models

import "encoding/json"

// Realtime event types sent to the model.
const (
	RealtimeInputAudioAppend   = "input_audio_buffer.append"
	RealtimeInputAudioCommit   = "input_audio_buffer.commit"
	RealtimeResponseCreate     = "response.create"
	RealtimeFunctionCallOutput = "response.function_call_output"
)

// Realtime event types received from the model. The short forms are the
// bridge's canonical names; the long forms are what the hosted API emits.
const (
	RealtimeAudioDelta           = "audio.delta"
	RealtimeResponseAudioDelta   = "response.audio.delta"
	RealtimeResponseOutputAudio  = "response.output_audio.delta"
	RealtimeFunctionCall         = "response.function_call"
	RealtimeFunctionCallArgsDone = "response.function_call_arguments.done"
	RealtimeError                = "error"
)

// RealtimeAudioAppend forwards caller audio into the model's input buffer
type RealtimeAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// RealtimeControl is an event with no body beyond its type
type RealtimeControl struct {
	Type string `json:"type"`
}

// RealtimeResponseRequest asks the model to produce a response now
type RealtimeResponseRequest struct {
	Type     string                   `json:"type"`
	Response *RealtimeResponseOptions `json:"response,omitempty"`
}

// RealtimeResponseOptions overrides the session defaults for one response.
type RealtimeResponseOptions struct {
	Instructions string   `json:"instructions,omitempty"`
	Modalities   []string `json:"modalities,omitempty"`
}

// RealtimeFunctionOutput answers a single function call
type RealtimeFunctionOutput struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// RealtimeServerEvent is the union of the inbound model events the bridge reads
type RealtimeServerEvent struct {
	Type      string               `json:"type"`
	EventID   string               `json:"event_id,omitempty"`
	Audio     string               `json:"audio,omitempty"`
	Delta     string               `json:"delta,omitempty"`
	Name      string               `json:"name,omitempty"`
	Arguments string               `json:"arguments,omitempty"`
	CallID    string               `json:"call_id,omitempty"`
	Error     *RealtimeErrorDetail `json:"error,omitempty"`
}

// AudioPayload returns the audio chunk whichever field the sender used
func (e RealtimeServerEvent) AudioPayload() string {
	if e.Audio != "" {
		return e.Audio
	}
	return e.Delta
}

// RealtimeErrorDetail is the body of an error event.
type RealtimeErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// TurnDetection configures server side voice activity detection
type TurnDetection struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"`
}

// RealtimeTool is the flat function declaration used by realtime sessions
type RealtimeTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// RealtimeSessionRequest is the one-shot negotiation body
type RealtimeSessionRequest struct {
	Model             string         `json:"model"`
	Modalities        []string       `json:"modalities"`
	Voice             string         `json:"voice"`
	Instructions      string         `json:"instructions"`
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
	Tools             []RealtimeTool `json:"tools,omitempty"`
	ToolChoice        string         `json:"tool_choice,omitempty"`
}

// RealtimeSessionResponse carries the short lived credential for the stream
type RealtimeSessionResponse struct {
	ID           string               `json:"id"`
	Model        string               `json:"model,omitempty"`
	ClientSecret RealtimeClientSecret `json:"client_secret"`
}

// RealtimeClientSecret is the short-lived credential for the realtime stream.
type RealtimeClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}
