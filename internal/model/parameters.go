package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParameterSet is an ordered name -> value mapping. The zero value is empty and ready to use.
type ParameterSet struct {
	names  []string
	values map[string]float64
}

// NewParameterSet builds a set from alternating name/value pairs in order.
func NewParameterSet(pairs ...any) ParameterSet {
	var p ParameterSet
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case int:
			p.Set(name, float64(v))
		case float64:
			p.Set(name, v)
		}
	}
	return p
}

func (p *ParameterSet) Set(name string, value float64) {
	if p.values == nil {
		p.values = make(map[string]float64)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

func (p ParameterSet) Get(name string) (float64, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Float returns the named value or def when absent.
func (p ParameterSet) Float(name string, def float64) float64 {
	if v, ok := p.values[name]; ok {
		return v
	}
	return def
}

// Int returns the named value truncated to int, or def when absent.
func (p ParameterSet) Int(name string, def int) int {
	if v, ok := p.values[name]; ok {
		return int(v)
	}
	return def
}

func (p ParameterSet) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p ParameterSet) Clone() ParameterSet {
	var out ParameterSet
	for _, n := range p.names {
		out.Set(n, p.values[n])
	}
	return out
}

func (p ParameterSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range p.names {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(n)
		buf.WriteByte('=')
		buf.WriteString(strconv.FormatFloat(p.values[n], 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.String()
}

// MarshalJSON writes an object keeping insertion order.
func (p ParameterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.values[n])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of numbers, keeping the key order of the document.
func (p *ParameterSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = ParameterSet{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: parameters must be a JSON object", ErrInvalidArgument)
	}
	out := ParameterSet{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("%w: parameter %q: %v", ErrInvalidArgument, key, err)
		}
		out.Set(key, v)
	}
	*p = out
	return nil
}
