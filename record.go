package persist

import (
	"encoding/json"
	"maps"
	"reflect"

	"github.com/goliatone/go-persist/internal/hydrate"
)

// VersionField is the key the running version is stored under, next to the
// persisted state fields.
const VersionField = "miniVersion"

// Record is one persisted snapshot: the selected state fields plus the
// version that was running when it was last written.
type Record struct {
	Fields  map[string]any
	Version string

	// tagged reports whether the stored payload carried a string version.
	tagged bool
}

// NewRecord builds a record tagged with version.
func NewRecord(fields map[string]any, version string) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{Fields: fields, Version: version, tagged: true}
}

// MarshalJSON writes the fields and the version as one flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	maps.Copy(out, r.Fields)
	out[VersionField] = r.Version
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into fields and version.
func (r *Record) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeRecord("", data)
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}

// Tagged reports whether the record carries a version, so it can be compared
// against the running one.
func (r Record) Tagged() bool {
	return r.tagged
}

// apply returns the record that should be stored after writing payload under
// version: a field-wise merge when the versions match, a fresh record otherwise.
func (r Record) apply(payload map[string]any, version string) (Record, bool) {
	if r.tagged && r.Version == version {
		fields := make(map[string]any, len(r.Fields)+len(payload))
		maps.Copy(fields, r.Fields)
		maps.Copy(fields, payload)
		return NewRecord(fields, version), true
	}
	fields := make(map[string]any, len(payload))
	maps.Copy(fields, payload)
	return NewRecord(fields, version), false
}

var recordDecoder = hydrate.NewDecoder[map[string]any](
	hydrate.WithUseNumber[map[string]any](),
	hydrate.WithPostHook[map[string]any](func(_ hydrate.Context, payload *map[string]any) error {
		hydrate.NormalizeNumbers(*payload)
		return nil
	}),
)

// DecodeRecord parses a stored value. Numbers come back as int64 when they
// are integral and float64 otherwise; rehydration then converts top-level
// numbers to the type the store field already has.
func DecodeRecord(key string, data []byte) (Record, error) {
	payload, err := recordDecoder.DecodeBytes(hydrate.Context{Key: key, Source: "storage"}, data)
	if err != nil {
		return Record{}, err
	}
	record := Record{Fields: payload}
	if raw, ok := payload[VersionField]; ok {
		if version, ok := raw.(string); ok {
			record.Version = version
			record.tagged = true
		}
		delete(record.Fields, VersionField)
	}
	return record, nil
}

// conformNumbers converts top-level decoded numbers to the numeric type the
// same field has in state. Conversions that lose precision or sign are skipped.
func conformNumbers(state, fields map[string]any) map[string]any {
	for key, value := range fields {
		if current, ok := state[key]; ok && current != nil && value != nil {
			fields[key] = conformNumber(current, value)
		}
	}
	return fields
}

func conformNumber(current, value any) any {
	target := reflect.TypeOf(current)
	v := reflect.ValueOf(value)
	if v.Type() == target || !isNumberKind(target.Kind()) || !isNumberKind(v.Kind()) {
		return value
	}
	if isUnsignedKind(target.Kind()) && isNegative(v) {
		return value
	}
	converted := v.Convert(target)
	if converted.Convert(v.Type()).Interface() != value {
		return value
	}
	return converted.Interface()
}

func isNumberKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return isUnsignedKind(kind)
}

func isUnsignedKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNegative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}

func encodeRecord(record Record) ([]byte, error) {
	return json.Marshal(record)
}
