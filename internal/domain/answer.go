package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer is a submitted value. Clients send a bare string, a list of strings, or null;
// all three decode into Values.
type Answer struct {
	Values []string
}

// SingleAnswer builds an Answer holding one value.
func SingleAnswer(v string) Answer {
	return Answer{Values: []string{v}}
}

// ListAnswer builds an Answer holding the given values.
func ListAnswer(vs ...string) Answer {
	return Answer{Values: append([]string(nil), vs...)}
}

// Scalar returns the value of a single-valued answer.
func (a Answer) Scalar() (string, bool) {
	if len(a.Values) != 1 {
		return "", false
	}
	return a.Values[0], true
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Values = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.Values = []string{s}
		return nil
	case '[':
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		a.Values = vs
		return nil
	default:
		return fmt.Errorf("answer must be a string, a list of strings or null")
	}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch len(a.Values) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(a.Values[0])
	default:
		return json.Marshal(a.Values)
	}
}
