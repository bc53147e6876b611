// Package health tracks the liveness of supervised components in a
// process-wide registry, and renders it as a JSON snapshot for the
// daemon's state file and /healthz endpoint.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// ComponentHealth is the last-known status of one supervised component.
type ComponentHealth struct {
	Status       string `json:"status"`
	UpdatedAt    string `json:"updated_at"`
	LastOK       string `json:"last_ok,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	RestartCount uint64 `json:"restart_count"`
}

// HealthSnapshot is the full point-in-time view of the process and all
// components it is supervising. Components is a plain map: encoding/json
// sorts string map keys on marshal, so the serialized output is stable
// without needing an ordered map type.
type HealthSnapshot struct {
	PID            int                        `json:"pid"`
	UpdatedAt      string                     `json:"updated_at"`
	UptimeSeconds  uint64                     `json:"uptime_seconds"`
	Components     map[string]ComponentHealth `json:"components"`
}

type registry struct {
	mu         sync.Mutex
	startedAt  time.Time
	components map[string]ComponentHealth
}

var (
	reg     *registry
	regOnce sync.Once
)

func get() *registry {
	regOnce.Do(func() {
		reg = &registry{
			startedAt:  time.Now(),
			components: make(map[string]ComponentHealth),
		}
	})
	return reg
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func upsert(component string, update func(*ComponentHealth)) {
	r := get()
	r.mu.Lock()
	defer r.mu.Unlock()

	now := nowRFC3339()
	entry, ok := r.components[component]
	if !ok {
		entry = ComponentHealth{
			Status:    "starting",
			UpdatedAt: now,
		}
	}
	update(&entry)
	entry.UpdatedAt = now
	r.components[component] = entry
}

// MarkOK records that component is healthy.
func MarkOK(component string) {
	upsert(component, func(e *ComponentHealth) {
		e.Status = "ok"
		e.LastOK = nowRFC3339()
		e.LastError = ""
	})
}

// MarkError records that component failed, keeping err as the
// most recently observed error message.
func MarkError(component string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	upsert(component, func(e *ComponentHealth) {
		e.Status = "error"
		e.LastError = msg
	})
}

// BumpRestart increments the restart counter for component.
func BumpRestart(component string) {
	upsert(component, func(e *ComponentHealth) {
		e.RestartCount++
	})
}

// Snapshot returns the current state of the process and every component
// that has reported in at least once.
func Snapshot() HealthSnapshot {
	r := get()
	r.mu.Lock()
	components := make(map[string]ComponentHealth, len(r.components))
	for k, v := range r.components {
		components[k] = v
	}
	uptime := uint64(time.Since(r.startedAt).Seconds())
	r.mu.Unlock()

	return HealthSnapshot{
		PID:           os.Getpid(),
		UpdatedAt:     nowRFC3339(),
		UptimeSeconds: uptime,
		Components:    components,
	}
}

// SnapshotJSON marshals Snapshot(), falling back to an error payload if
// marshaling itself fails (it practically never does: every field is a
// basic type or a map of them).
func SnapshotJSON() []byte {
	data, err := json.Marshal(Snapshot())
	if err != nil {
		return []byte(`{"status":"error","message":"failed to serialize health snapshot"}`)
	}
	return data
}

// StructuredError formats a consistent what/why/fix error message used
// across the daemon wherever an operator-facing diagnostic is produced.
func StructuredError(what, why, fix string) string {
	return fmt.Sprintf("%s\n  Cause: %s\n  Fix: %s", what, why, fix)
}
