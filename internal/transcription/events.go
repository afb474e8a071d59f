package transcription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event is one extracted note with start and end offsets in seconds.
type Event struct {
	Note  string  `json:"note"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (e Event) Duration() float64 {
	return e.End - e.Start
}

// NormalizeEvents accepts the shapes the extractor emits, either
// [note, t0, t1] tuples or objects keyed note|name, start|t0, end|t1.
// Entries matching neither shape are dropped.
func NormalizeEvents(raw []json.RawMessage) []Event {
	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		var (
			ev Event
			ok bool
		)
		switch item[0] {
		case '[':
			ev, ok = tupleEvent(item)
		case '{':
			ev, ok = objectEvent(item)
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events
}

func tupleEvent(raw json.RawMessage) (Event, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 3 {
		return Event{}, false
	}
	start, ok := number(parts[1])
	if !ok {
		return Event{}, false
	}
	end, ok := number(parts[2])
	if !ok {
		return Event{}, false
	}
	return Event{Note: text(parts[0]), Start: start, End: end}, true
}

func objectEvent(raw json.RawMessage) (Event, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Event{}, false
	}

	note := text(fields["note"])
	if note == "" {
		note = text(fields["name"])
	}

	start, ok := number(fields["start"])
	if !ok {
		start, ok = number(fields["t0"])
	}
	if !ok && (fields["start"] != nil || fields["t0"] != nil) {
		return Event{}, false
	}

	end, ok := number(fields["end"])
	if !ok {
		end, ok = number(fields["t1"])
	}
	if !ok {
		if fields["end"] != nil || fields["t1"] != nil {
			return Event{}, false
		}
		end = start
	}
	return Event{Note: note, Start: start, End: end}, true
}

func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func text(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// RenderText lists events as "note(1.250s)" separated by spaces.
func RenderText(events []Event) string {
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		parts = append(parts, fmt.Sprintf("%s(%.3fs)", ev.Note, ev.Duration()))
	}
	return strings.Join(parts, " ")
}
