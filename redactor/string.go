package redactor

import (
	"encoding/json"
	"io"
	"runtime"
)

// String holds a credential, like an API password or bearer token. It is redacted
// when marshaling unless using redactor.Encoder
type String string

// MarshalJSON implements json.Marshaler
func (s String) MarshalJSON() ([]byte, error) {
	if isRedacted() {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// Encoder marshals values into JSON with redacted values included. Only use this when persisting to disk and NOT sending over HTTP.
type Encoder json.Encoder

// NewEncoder creates a new json.Encoder
func NewEncoder(w io.Writer) *Encoder {
	return (*Encoder)(json.NewEncoder(w))
}

func (p *Encoder) toJSONEncoder() *json.Encoder {
	return (*json.Encoder)(p)
}

// Encode calls json.Encoder.Encode
func (p *Encoder) Encode(v interface{}) error {
	return p.toJSONEncoder().Encode(v)
}

// SetIndent calls json.Encoder.SetIndent
func (p *Encoder) SetIndent(prefix, indent string) {
	p.toJSONEncoder().SetIndent(prefix, indent)
}

func isRedacted() bool {
	// poor man's redactor -- walk the stack looking for our own encoder
	var pc uintptr
	ok := true
	for caller := 0; ok; caller++ { // start by skipping the current function
		pc, _, _, ok = runtime.Caller(caller)
		if ok && runtime.FuncForPC(pc).Name() == "github.com/extrato-dev/extrato/redactor.(*Encoder).Encode" {
			return false
		}
	}
	return true
}
