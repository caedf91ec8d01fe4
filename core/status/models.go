package status

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// errors
	ErrNotFound     = errors.New("status field not found")
	ErrInvalidValue = errors.New("invalid status value")
)

// Value is a single-valued status mark (attendance, checklist progress...).
type Value string

const (
	ValuePending Value = "pending"
	ValueDone    Value = "done"
	ValueMissed  Value = "missed"
	ValueExcused Value = "excused"
)

// synonyms accepted on input; the store only ever holds canonical values.
var valueSynonyms = map[string]Value{
	"present":  ValueDone,
	"complete": ValueDone,
	"absent":   ValueMissed,
}

func (v Value) Valid() bool {
	switch v {
	case ValuePending, ValueDone, ValueMissed, ValueExcused:
		return true
	}
	return false
}

// ParseValue normalizes raw input into a canonical Value.
func ParseValue(s string) (Value, error) {
	v := Value(strings.ToLower(strings.TrimSpace(s)))
	if syn, ok := valueSynonyms[string(v)]; ok {
		v = syn
	}
	if !v.Valid() {
		return "", ErrInvalidValue
	}
	return v, nil
}

// Field is one status mark on one entity. Fields are created implicitly on
// first write, superseded on each subsequent write and never deleted here.
type Field struct {
	EntityID  string    `json:"entity_id"`
	Key       string    `json:"field_key"`
	Value     Value     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Store is the authoritative backend for status fields. WriteStatus returns
// the canonical field as stored, which may differ from the submitted value if
// the store normalizes it.
type Store interface {
	ReadStatus(ctx context.Context, entityID, key string) (Field, error)
	WriteStatus(ctx context.Context, entityID, key string, value Value) (Field, error)
}
