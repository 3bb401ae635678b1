// Package ui holds the small view helpers shared by every page: toast
// notifications, the cart badge and htmx event triggers.
package ui

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Toast tones understood by the client script.
const (
	ToneInfo    = "info"
	ToneSuccess = "success"
	ToneError   = "error"
)

// DefaultToastTimeoutMs is used when a toast carries no explicit timeout.
const DefaultToastTimeoutMs = 2000

// EventToast is the HX-Trigger event name that renders a toast.
const EventToast = "toast"

// Toast is a transient notification rendered by the client.
type Toast struct {
	Message   string `json:"message"`
	Tone      string `json:"tone"`
	TimeoutMs int    `json:"timeout"`
}

// NewToast normalizes tone and timeout.
func NewToast(message, tone string, timeoutMs int) Toast {
	switch tone {
	case ToneInfo, ToneSuccess, ToneError:
	default:
		tone = ToneInfo
	}
	if timeoutMs <= 0 {
		timeoutMs = DefaultToastTimeoutMs
	}
	return Toast{Message: strings.TrimSpace(message), Tone: tone, TimeoutMs: timeoutMs}
}

// Trigger merges events into the HX-Trigger response header. Existing JSON
// payloads are preserved; a bare event name is kept as an event with a nil payload.
func Trigger(w http.ResponseWriter, events map[string]any) {
	if len(events) == 0 {
		return
	}
	merged := map[string]any{}
	if prev := strings.TrimSpace(w.Header().Get("HX-Trigger")); prev != "" {
		if err := json.Unmarshal([]byte(prev), &merged); err != nil {
			merged = map[string]any{}
			for _, name := range strings.Split(prev, ",") {
				if name = strings.TrimSpace(name); name != "" {
					merged[name] = nil
				}
			}
		}
	}
	for k, v := range events {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(raw))
}

// ShowToast queues a toast on the response.
func ShowToast(w http.ResponseWriter, t Toast) {
	Trigger(w, map[string]any{EventToast: t})
}
