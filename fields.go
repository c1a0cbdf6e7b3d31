package ccx

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goliatone/go-ccx/internal/hydrate"
)

// FieldCodec converts a field value to and from its JSON-compatible
// representation. Override records store json.Marshal(ToJSON(value)); reads
// apply FromJSON to the json.Unmarshal result. A nil JSON value is always
// passed through as nil.
type FieldCodec interface {
	FromJSON(raw any) (any, error)
	ToJSON(value any) (any, error)
}

// DefaultFieldCodecs returns codecs for DefaultOverridableFields.
func DefaultFieldCodecs() map[string]FieldCodec {
	return map[string]FieldCodec{
		"due":                   DateField{},
		"start":                 DateField{},
		"visible_to_staff_only": BooleanField{},
		"graded":                BooleanField{},
		"format":                StringField{},
	}
}

// StringField stores plain strings.
type StringField struct{}

func (StringField) FromJSON(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("string field: unexpected %T", raw)
	}
	return value, nil
}

func (StringField) ToJSON(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("string field: unsupported %T", value)
	}
}

// IntegerField stores integral numbers as int.
type IntegerField struct{}

func (IntegerField) FromJSON(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("integer field: %v is not integral", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer field: %w", err)
		}
		return int(n), nil
	default:
		return nil, fmt.Errorf("integer field: unexpected %T", raw)
	}
}

func (IntegerField) ToJSON(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	default:
		return nil, fmt.Errorf("integer field: unsupported %T", value)
	}
}

// FloatField stores numbers as float64.
type FloatField struct{}

func (FloatField) FromJSON(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("float field: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("float field: unexpected %T", raw)
	}
}

func (FloatField) ToJSON(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("float field: unsupported %T", value)
	}
}

// BooleanField stores booleans.
type BooleanField struct{}

func (BooleanField) FromJSON(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	value, ok := raw.(bool)
	if !ok {
		return nil, fmt.Errorf("boolean field: unexpected %T", raw)
	}
	return value, nil
}

func (BooleanField) ToJSON(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	v, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("boolean field: unsupported %T", value)
	}
	return v, nil
}

// DateField stores time.Time values as RFC 3339 strings in UTC. Date-only
// strings (2006-01-02) are accepted on both sides and read back as midnight
// UTC.
type DateField struct{}

func (DateField) FromJSON(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("date field: unexpected %T", raw)
	}
	return parseDate(value)
}

func (DateField) ToJSON(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.UTC().Format(time.RFC3339), nil
	case string:
		parsed, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		return parsed.Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("date field: unsupported %T", value)
	}
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date field: %q is not an RFC 3339 timestamp or date", value)
	}
	return parsed.UTC(), nil
}

// JSONField stores any JSON-compatible value unchanged.
type JSONField struct{}

func (JSONField) FromJSON(raw any) (any, error) {
	return raw, nil
}

func (JSONField) ToJSON(value any) (any, error) {
	if _, err := json.Marshal(value); err != nil {
		return nil, fmt.Errorf("json field: %w", err)
	}
	return value, nil
}

// StructField stores a JSON object decoded into T.
type StructField[T any] struct {
	decoder hydrate.Decoder[T]
}

// StructFieldOption configures a StructField.
type StructFieldOption[T any] func(*hydrate.Decoder[T])

// StrictStruct rejects stored objects carrying keys unknown to T.
func StrictStruct[T any]() StructFieldOption[T] {
	return func(d *hydrate.Decoder[T]) {
		d.Strict = true
	}
}

// StructNumbers decodes numbers into json.Number for fields typed as any.
func StructNumbers[T any]() StructFieldOption[T] {
	return func(d *hydrate.Decoder[T]) {
		d.UseNumber = true
	}
}

// UpgradeStruct rewrites stored objects before decoding, so overrides
// written for an older shape of T still resolve. Upgrades run in the order
// they are given.
func UpgradeStruct[T any](upgrade hydrate.Upgrade) StructFieldOption[T] {
	return func(d *hydrate.Decoder[T]) {
		d.Upgrades = append(d.Upgrades, upgrade)
	}
}

// CheckStruct validates values on write and on load. A failing check
// rejects the write, and a stored object failing it is reported as a load
// error.
func CheckStruct[T any](check hydrate.Check[T]) StructFieldOption[T] {
	return func(d *hydrate.Decoder[T]) {
		d.Checks = append(d.Checks, check)
	}
}

// NewStructField builds a codec for the field called name.
func NewStructField[T any](name string, opts ...StructFieldOption[T]) StructField[T] {
	decoder := hydrate.Decoder[T]{Field: name}
	for _, opt := range opts {
		if opt != nil {
			opt(&decoder)
		}
	}
	return StructField[T]{decoder: decoder}
}

func (f StructField[T]) FromJSON(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	payload, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("struct field %q: unexpected %T", f.decoder.Field, raw)
	}
	return f.decoder.Decode(payload)
}

func (f StructField[T]) ToJSON(value any) (any, error) {
	var typed T
	switch v := value.(type) {
	case nil:
		return nil, nil
	case T:
		typed = v
	case *T:
		if v == nil {
			return nil, nil
		}
		typed = *v
	default:
		return nil, fmt.Errorf("struct field %q: unsupported %T", f.decoder.Field, value)
	}
	if err := f.decoder.Check(typed); err != nil {
		return nil, err
	}
	buffer, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("struct field %q: %w", f.decoder.Field, err)
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, fmt.Errorf("struct field %q: %w", f.decoder.Field, err)
	}
	return out, nil
}

func encodeValue(codec FieldCodec, value any) (string, error) {
	jsonValue, err := codec.ToJSON(value)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(jsonValue)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func decodeValue(codec FieldCodec, payload string) (any, error) {
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	return codec.FromJSON(raw)
}
