package models

import "time"

// Direction tells which way an audio frame is travelling through the bridge.
type Direction int

const (
	CallerToModel Direction = iota
	ModelToCaller
)

func (d Direction) String() string {
	switch d {
	case CallerToModel:
		return "caller_to_model"
	case ModelToCaller:
		return "model_to_caller"
	default:
		return "unknown"
	}
}

// AudioFrame is one chunk of base64 encoded g711 audio in flight between legs.
// Frames are never retained after they have been relayed.
type AudioFrame struct {
	Payload   string
	Direction Direction
}

// CallRecord is the audit summary of a finished call session
type CallRecord struct {
	SessionID      string    `json:"session_id" firestore:"session_id"`
	CallSID        string    `json:"call_sid,omitempty" firestore:"call_sid,omitempty"`
	StreamSID      string    `json:"stream_sid,omitempty" firestore:"stream_sid,omitempty"`
	StartTime      time.Time `json:"start_time" firestore:"start_time"`
	EndTime        time.Time `json:"end_time" firestore:"end_time"`
	DurationSecs   int       `json:"duration_secs" firestore:"duration_secs"`
	CloseReason    string    `json:"close_reason" firestore:"close_reason"`
	ReachedActive  bool      `json:"reached_active" firestore:"reached_active"`
	MediaFramesIn  int       `json:"media_frames_in" firestore:"media_frames_in"`
	AudioFramesOut int       `json:"audio_frames_out" firestore:"audio_frames_out"`
	Commits        int       `json:"commits" firestore:"commits"`
	ToolCalls      int       `json:"tool_calls" firestore:"tool_calls"`
}
