package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the type of change carried by an Event.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
	Renamed
)

var kindNames = [...]string{
	Created:  "created",
	Modified: "modified",
	Deleted:  "deleted",
	Renamed:  "renamed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind as its lower-case name.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a lower-case kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event describes one change to the file index. Path is root-relative and
// slash-separated. From is set only for Renamed.
type Event struct {
	Kind Kind
	Path string
	From string
	Time time.Time
}

// eventJSON is the wire form: {"type","path","from","timestamp"} with the
// timestamp in fractional Unix seconds.
type eventJSON struct {
	Type      Kind    `json:"type"`
	Path      string  `json:"path"`
	From      string  `json:"from,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Type:      e.Kind,
		Path:      e.Path,
		From:      e.From,
		Timestamp: UnixSeconds(e.Time),
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	sec := int64(wire.Timestamp)
	nsec := int64((wire.Timestamp - float64(sec)) * 1e9)
	*e = Event{Kind: wire.Type, Path: wire.Path, From: wire.From, Time: time.Unix(sec, nsec)}
	return nil
}

// UnixSeconds converts t to fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}
