package notebook

import (
	"encoding/json"
	"sort"
)

// OutputType is the nbformat output_type of an output record.
type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputDisplayData   OutputType = "display_data"
	OutputExecuteResult OutputType = "execute_result"
	OutputError         OutputType = "error"
)

// Output is one execution result attached to a code cell.
type Output struct {
	OutputType     OutputType                 `json:"output_type"`
	Name           string                     `json:"name,omitempty"`
	Text           MultilineString            `json:"text,omitempty"`
	Data           MimeBundle                 `json:"data,omitempty"`
	Metadata       map[string]json.RawMessage `json:"metadata,omitempty"`
	ExecutionCount *int                       `json:"execution_count,omitempty"`
	EName          string                     `json:"ename,omitempty"`
	EValue         string                     `json:"evalue,omitempty"`
	Traceback      []string                   `json:"traceback,omitempty"`
}

// MimeBundle maps a mime type to its raw JSON payload.
type MimeBundle map[string]json.RawMessage

// Has reports whether the bundle carries mime.
func (b MimeBundle) Has(mime string) bool {
	_, ok := b[mime]
	return ok
}

// Text decodes a string or multiline-string payload. Non-string payloads
// (JSON documents) are returned as their raw encoding.
func (b MimeBundle) Text(mime string) string {
	raw, ok := b[mime]
	if !ok {
		return ""
	}
	var m MultilineString
	if err := json.Unmarshal(raw, &m); err != nil {
		return string(raw)
	}
	return string(m)
}

// Types returns the bundle's mime types in sorted order.
func (b MimeBundle) Types() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
