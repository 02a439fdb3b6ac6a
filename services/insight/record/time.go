// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package record

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Time is a UTC timestamp with lenient JSON decoding.
//
// Description:
//
//	Collected data crosses several serialization boundaries (collector
//	output, store snapshots, API payloads), and timestamps arrive in more
//	than one shape. Decoding tries a fixed set of layouts plus epoch
//	seconds; anything unparseable becomes the zero time instead of failing
//	the whole fetch. Callers treat the zero value as "missing".
//
// Thread Safety: Immutable value type, safe to copy and share.
type Time struct {
	time.Time
}

// timeLayouts are tried in order during decoding. RFC3339 first since
// that is what we write.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewTime wraps a time.Time, normalizing to UTC.
func NewTime(t time.Time) Time {
	return Time{t.UTC()}
}

// TimePtr wraps a time.Time as an optional field value.
func TimePtr(t time.Time) *Time {
	ts := NewTime(t)
	return &ts
}

// ParseTime decodes a timestamp string leniently.
//
// Description:
//
//	Tries the known layouts, then integer/float epoch seconds. Malformed
//	input coerces to the zero time rather than returning an error; use
//	IsZero to detect it.
//
// Inputs:
//
//	s - Raw timestamp text. Surrounding whitespace is ignored.
//
// Outputs:
//
//	Time - Parsed UTC timestamp, or the zero value when unparseable.
func ParseTime(s string) Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTime(t)
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(secs)
		nsec := int64((secs - float64(sec)) * float64(time.Second))
		return NewTime(time.Unix(sec, nsec))
	}
	return Time{}
}

// MarshalJSON renders RFC3339Nano in UTC, or null for the zero value.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC3339 variants, date-only strings, epoch
// seconds, null, and the empty string. Malformed values decode to the
// zero time; they never error out a record fetch.
func (t *Time) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	*t = ParseTime(raw)
	return nil
}

// Equal reports whether two timestamps name the same instant.
func (t Time) Equal(other Time) bool {
	return t.Time.Equal(other.Time)
}
