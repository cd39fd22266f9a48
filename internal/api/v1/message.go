package v1

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Warrelis/huba/internal/core/value"
)

// Field is one named column value of a log message.
type Field struct {
	Name  string
	Value value.Value
}

// Fields is the ordered column set of a log message. Insertion order is
// preserved through JSON, and names are unique per message (enforced by
// LogMessage.Validate, not by construction).
type Fields []Field

// Get looks up a column by name.
func (f Fields) Get(name string) (value.Value, bool) {
	for _, fld := range f {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return value.Value{}, false
}

// Has reports whether the column exists with a non-null value.
func (f Fields) Has(name string) bool {
	v, ok := f.Get(name)
	return ok && !v.IsNull()
}

// MarshalJSON writes the fields as a JSON object in field order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(fld.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping document order, which Go's map
// types would discard.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected JSON object")
	}

	var out Fields
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key")
		}

		var val value.Value
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("fields: column %q: %w", name, err)
		}
		out = append(out, Field{Name: name, Value: val})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

// LogMessage is the atomic unit of ingestion: a timestamped, schema-flexible
// row bound to one table. Immutable once ingested.
type LogMessage struct {
	// Timestamp is the client-side event time. Range filters are inclusive
	// on both bounds.
	Timestamp int64 `json:"timestamp"`

	// Table names the logical table this message belongs to.
	Table string `json:"table"`

	// Fields is the ordered column set. Column names must be unique.
	Fields Fields `json:"fields"`
}

// Validate ensures the message has the required envelope attributes.
func (m *LogMessage) Validate() error {
	if m.Table == "" {
		return fmt.Errorf("table is required")
	}

	seen := make(map[string]struct{}, len(m.Fields))
	for _, fld := range m.Fields {
		if fld.Name == "" {
			return fmt.Errorf("field name must not be empty")
		}
		if _, dup := seen[fld.Name]; dup {
			return fmt.Errorf("duplicate field %q", fld.Name)
		}
		seen[fld.Name] = struct{}{}
	}
	return nil
}

// LogBatch is an ordered group of messages ingested as one unit. All valid
// messages of a batch become visible together; a reader never observes a
// partially appended batch.
type LogBatch struct {
	// ID identifies the batch for logging and client correlation.
	// Assigned by the ingestion service when the client leaves it empty.
	ID string `json:"id,omitempty"`

	Messages []LogMessage `json:"messages"`
}

// IngestError reports one rejected message within a batch.
type IngestError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// IngestResponse summarizes a batch ingest. Malformed messages are rejected
// per message; the rest of the batch still appends.
type IngestResponse struct {
	BatchID  string        `json:"batch_id"`
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Errors   []IngestError `json:"errors,omitempty"`
}
