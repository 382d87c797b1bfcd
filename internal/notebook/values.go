package notebook

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Flag is an optional boolean-ish metadata value.
//
// Notebook metadata is written by many tools and flags are not always JSON
// booleans, so truthiness follows the loose rules front-ends apply:
// false, 0, "" and null are false, anything else is true.
type Flag struct {
	set bool
	on  bool
}

// Set returns a present Flag with the given value.
func Set(on bool) Flag {
	return Flag{set: true, on: on}
}

// IsSet reports whether the key was present in the metadata.
func (f Flag) IsSet() bool { return f.set }

// True reports whether the flag is present and truthy.
func (f Flag) True() bool { return f.set && f.on }

// Or returns the flag's truthiness, or def when the key was absent.
func (f Flag) Or(def bool) bool {
	if !f.set {
		return def
	}
	return f.on
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	f.set = true
	f.on = truthy(data)
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f.on {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

func truthy(data []byte) bool {
	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0:
		return false
	case bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")):
		return false
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s != ""
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return false
		}
		return n != 0
	}
	// true, objects and arrays.
	return true
}

// MultilineString is an nbformat multiline string: either one string or a
// list of strings that are concatenated as-is.
type MultilineString string

func (m *MultilineString) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*m = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '[' {
		var parts []string
		if err := json.Unmarshal(raw, &parts); err != nil {
			return err
		}
		*m = MultilineString(strings.Join(parts, ""))
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	*m = MultilineString(s)
	return nil
}

func (m MultilineString) String() string { return string(m) }
