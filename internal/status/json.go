package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastEvent     *LastEvent   `json:"last_event,omitempty"`
	LastOrderID   string       `json:"last_order_id,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Guard         *GuardJSON   `json:"debounce_guard,omitempty"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LastEvent describes the most recent accepted edge.
type LastEvent struct {
	Line      int    `json:"line"`
	Timestamp string `json:"timestamp"`
}

// GuardJSON is the JSON representation of the debounce slot.
type GuardJSON struct {
	Line  int    `json:"line"`
	Value string `json:"value"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of counters.
type CountsJSON struct {
	Accepted   int `json:"accepted"`
	Suppressed int `json:"suppressed"`
	Ignored    int `json:"ignored"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Inputs          int    `json:"inputs"`
	DebounceEnabled bool   `json:"debounce"`
	DebounceMs      int64  `json:"debounce_ms"`
	RemoteBaseURL   string `json:"remote_base_url"`
	Broker          string `json:"broker,omitempty"`
	HTTPAddr        string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		LastOrderID:   snap.LastOrderID,
		LastError:     snap.LastError,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Accepted:   snap.Counts.Accepted,
			Suppressed: snap.Counts.Suppressed,
			Ignored:    snap.Counts.Ignored,
			Dispatched: snap.Counts.Dispatched,
			Failed:     snap.Counts.Failed,
		},
		Config: ConfigJSON{
			Inputs:          snap.Config.Inputs,
			DebounceEnabled: snap.Config.DebounceEnabled,
			DebounceMs:      snap.Config.DebounceMs,
			RemoteBaseURL:   snap.Config.RemoteBaseURL,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}
	if !snap.LastEventTime.IsZero() {
		inner.LastEvent = &LastEvent{
			Line:      snap.LastEventLine,
			Timestamp: snap.LastEventTime.UTC().Format(time.RFC3339),
		}
	}
	if snap.Guard != nil {
		inner.Guard = &GuardJSON{Line: snap.Guard.Line, Value: snap.Guard.Value.String()}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
