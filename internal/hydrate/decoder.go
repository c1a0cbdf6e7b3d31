// Package hydrate turns the JSON objects stored for struct-valued override
// fields back into typed values.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-ccx/internal/clone"
)

// ErrNilPayload is returned when a struct field has no stored object.
var ErrNilPayload = errors.New("hydrate: nil payload")

// Upgrade rewrites a stored object before it is decoded, usually to read
// overrides written for an older shape of the struct. It receives a private
// copy of the payload and may modify it in place.
type Upgrade func(payload map[string]any) (map[string]any, error)

// Check validates a decoded value. A failing check rejects the stored
// override the same way a malformed payload does.
type Check[T any] func(value T) error

// Stage names the step of Decode that failed.
type Stage string

const (
	StageUpgrade Stage = "upgrade"
	StageDecode  Stage = "decode"
	StageCheck   Stage = "check"
)

// Error reports which field and step rejected a stored object.
type Error struct {
	Field string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s field %q: %v", e.Stage, e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Decoder decodes the stored object of the struct field called Field.
// Strict rejects keys T does not declare. UseNumber keeps numbers bound to
// fields typed as any as json.Number.
type Decoder[T any] struct {
	Field     string
	Strict    bool
	UseNumber bool
	Upgrades  []Upgrade
	Checks    []Check[T]
}

// Decode runs the upgrades in order, decodes the result into T and then
// runs the checks. payload is never modified.
func (d Decoder[T]) Decode(payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("%w for field %q", ErrNilPayload, d.Field)
	}

	current := clone.Map(payload)
	for _, upgrade := range d.Upgrades {
		if upgrade == nil {
			continue
		}
		next, err := upgrade(current)
		if err != nil {
			return zero, d.fail(StageUpgrade, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, d.fail(StageDecode, err)
	}
	dec := json.NewDecoder(bytes.NewReader(buffer))
	if d.Strict {
		dec.DisallowUnknownFields()
	}
	if d.UseNumber {
		dec.UseNumber()
	}
	var value T
	if err := dec.Decode(&value); err != nil {
		return zero, d.fail(StageDecode, err)
	}

	if err := d.Check(value); err != nil {
		return zero, err
	}
	return value, nil
}

// Check runs the checks against value.
func (d Decoder[T]) Check(value T) error {
	for _, check := range d.Checks {
		if check == nil {
			continue
		}
		if err := check(value); err != nil {
			return d.fail(StageCheck, err)
		}
	}
	return nil
}

func (d Decoder[T]) fail(stage Stage, err error) error {
	return &Error{Field: d.Field, Stage: stage, Err: err}
}
