package models

import "encoding/json"

// ToolCallRequest is a model initiated function call awaiting exactly one result
type ToolCallRequest struct {
	Name      string
	Arguments json.RawMessage
	CallID    string
}

// ToolCallResult answers the request carrying the same CallID.
// Output is the JSON document handed back to the model as a string.
type ToolCallResult struct {
	CallID string
	Output string
	Failed bool
}

// AppointmentSlot is one bookable time offered to callers
type AppointmentSlot struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Day      string `json:"-"`
	Provider string `json:"-"`
	Window   string `json:"-"`
}

// KnowledgeEntry maps a keyword set to a canned answer
type KnowledgeEntry struct {
	Topic    string
	Keywords []string
	Answer   string
}
