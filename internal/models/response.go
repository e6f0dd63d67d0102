package models

import "time"

// CallResponse holds the answers collected during one live call, keyed by the
// provider-assigned call session ID. Answers maps the 0-based question index
// (as a string, jsonb object key) to the caller's raw answer: a speech
// transcription or keypad digits.
type CallResponse struct {
	CallSid   string            `json:"call_sid"`
	Answers   map[string]string `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
}
