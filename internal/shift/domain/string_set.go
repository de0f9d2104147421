package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSet is an ordered, duplicate-free list stored as a JSON array.
type StringSet []string

// Value implements driver.Valuer
func (s StringSet) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *StringSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("StringSet: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*s = StringSet{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(s))
}

func (s StringSet) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Union returns s with the missing values of others appended in order.
func (s StringSet) Union(others ...string) StringSet {
	out := make(StringSet, 0, len(s)+len(others))
	for _, v := range s {
		if !out.Contains(v) {
			out = append(out, v)
		}
	}
	for _, v := range others {
		if !out.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}
