package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Well-known keys of an accident submission. Any other key is kept verbatim.
const (
	FieldSeverity     = "severity"
	FieldTime         = "time"
	FieldLocationText = "location_text"
	FieldLat          = "lat"
	FieldLng          = "lng"
	FieldImage        = "image"
	FieldSeq          = "seq"
)

var (
	ErrNotObject   = errors.New("alert must be a JSON object")
	ErrInvalidJSON = errors.New("alert is not valid JSON")
)

// DecodeAlert parses a submitted alert. Any JSON object is accepted; an empty
// body or null decodes to an empty alert.
func DecodeAlert(body []byte) (Alert, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Alert{}, nil
	}

	var a Alert
	if err := json.Unmarshal(body, &a); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, ErrInvalidJSON
	}
	if a == nil {
		a = Alert{}
	}
	return a, nil
}

// Alert is a single accident report as submitted by a detector. It is an open
// key/value record: ingestion never rejects unknown or malformed fields, so the
// typed accessors below degrade instead of failing.
type Alert map[string]any

// Clone returns a deep copy. Nested JSON objects and arrays are copied too, so
// a decoded alert and its clone share no mutable state.
func (a Alert) Clone() Alert {
	out := make(Alert, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Alert:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return slices.Clone(t)
	case json.RawMessage:
		return slices.Clone(t)
	default:
		return v
	}
}

func (a Alert) Severity() string {
	return a.str(FieldSeverity)
}

func (a Alert) Time() string {
	return a.str(FieldTime)
}

func (a Alert) LocationText() string {
	return a.str(FieldLocationText)
}

func (a Alert) Image() string {
	return a.str(FieldImage)
}

// Coordinates reports the alert position. ok is false unless both lat and lng
// are present and parse to finite numbers.
func (a Alert) Coordinates() (lat, lng float64, ok bool) {
	lat, latOK := toFloat(a[FieldLat])
	lng, lngOK := toFloat(a[FieldLng])
	if !latOK || !lngOK {
		return 0, 0, false
	}
	return lat, lng, true
}

// Seq returns the ledger-assigned sequence number, if one was assigned.
func (a Alert) Seq() (uint64, bool) {
	f, ok := toFloat(a[FieldSeq])
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return uint64(f), true
}

func (a Alert) str(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
