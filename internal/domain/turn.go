package domain

import (
	"strings"
	"time"
)

// Utterance is what the recognizer supplies for one turn.
type Utterance struct {
	Transcript string
	Intent     string
	// Slots maps slot name to its interpreted value; unfilled slots are
	// absent or empty.
	Slots map[string]string
}

// Slot returns the trimmed value of the named slot.
func (u Utterance) Slot(name string) string {
	if u.Slots == nil {
		return ""
	}
	return strings.TrimSpace(u.Slots[name])
}

// TurnRequest is the typed inbound request produced by the handler adapter.
type TurnRequest struct {
	Utterance  Utterance
	UserID     string
	SessionID  string
	Attributes SessionAttributes
}

// DialogAction is the terminal outcome of a turn.
type DialogAction string

const (
	ActionClose      DialogAction = "Close"
	ActionElicitSlot DialogAction = "ElicitSlot"
)

// TurnResponse is the router's answer for one turn.
type TurnResponse struct {
	Action  DialogAction
	Message string
	// Intent is the working intent of the turn, which may differ from the
	// recognized one after rule-based override.
	Intent       string
	SlotToElicit string
	Attributes   SessionAttributes
}

// TurnRecord is one entry in the per-session history log.
type TurnRecord struct {
	TurnID            string            `json:"turn_id"`
	SessionID         string            `json:"session_id"`
	UserInput         string            `json:"user_input"`
	AssistantResponse string            `json:"assistant_response"`
	Intent            string            `json:"intent"`
	Slots             map[string]string `json:"slots,omitempty"`
	SessionAttributes SessionAttributes `json:"session_attrs,omitempty"`
	Timestamp         time.Time         `json:"-"`
	TimestampMS       int64             `json:"timestamp_ms"`
}
