package persist

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestRecordMarshalIsFlat(t *testing.T) {
	data, err := json.Marshal(NewRecord(map[string]any{"b": 2, "a": "x"}, "1.0"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":"x","b":2,"miniVersion":"1.0"}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}

func TestDecodeRecordCases(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		fields    map[string]any
		version   string
		tagged    bool
		expectErr string
	}{
		{
			name:    "tagged",
			input:   `{"a":1,"ratio":0.5,"miniVersion":"1.0"}`,
			fields:  map[string]any{"a": int64(1), "ratio": 0.5},
			version: "1.0",
			tagged:  true,
		},
		{
			name:   "untagged",
			input:  `{"a":[1,{"b":2}]}`,
			fields: map[string]any{"a": []any{int64(1), map[string]any{"b": int64(2)}}},
		},
		{
			name:   "non string version is dropped",
			input:  `{"a":1,"miniVersion":2}`,
			fields: map[string]any{"a": int64(1)},
		},
		{
			name:   "empty version still tags",
			input:  `{"miniVersion":""}`,
			fields: map[string]any{},
			tagged: true,
		},
		{
			name:      "invalid",
			input:     `{"a":`,
			expectErr: "hydrate",
		},
		{
			name:      "empty",
			input:     ``,
			expectErr: "empty payload",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := DecodeRecord("cart", []byte(tc.input))
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(tc.fields, record.Fields) {
				t.Fatalf("fields mismatch:\nwant: %#v\n got: %#v", tc.fields, record.Fields)
			}
			if record.Version != tc.version || record.Tagged() != tc.tagged {
				t.Fatalf("unexpected version %q tagged=%v", record.Version, record.Tagged())
			}
		})
	}
}

func TestRecordUnmarshalJSON(t *testing.T) {
	var record Record
	if err := json.Unmarshal([]byte(`{"a":1,"miniVersion":"3"}`), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record.Version != "3" || record.Fields["a"] != int64(1) || !record.Tagged() {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestRecordApply(t *testing.T) {
	stored := NewRecord(map[string]any{"a": 1, "b": 1}, "1.0")

	merged, ok := stored.apply(map[string]any{"a": 2}, "1.0")
	if !ok || !reflect.DeepEqual(map[string]any{"a": 2, "b": 1}, merged.Fields) {
		t.Fatalf("expected merge, got %+v (merged=%v)", merged, ok)
	}
	if stored.Fields["a"] != 1 {
		t.Fatalf("apply must not mutate the stored record")
	}

	replaced, ok := stored.apply(map[string]any{"a": 2}, "2.0")
	if ok || !reflect.DeepEqual(map[string]any{"a": 2}, replaced.Fields) || replaced.Version != "2.0" {
		t.Fatalf("expected replacement, got %+v (merged=%v)", replaced, ok)
	}

	fresh, ok := Record{}.apply(map[string]any{"a": 1}, "")
	if ok || !fresh.Tagged() {
		t.Fatalf("untagged records never merge, got merged=%v", ok)
	}
}

func TestConformNumbersFollowsStateTypes(t *testing.T) {
	state := map[string]any{
		"count":  0,
		"ratio":  0.5,
		"small":  int32(0),
		"unsign": uint(0),
		"name":   "",
	}
	fields := map[string]any{
		"count":  int64(3),
		"ratio":  int64(2),
		"small":  float64(1.5),
		"unsign": int64(-1),
		"name":   int64(7),
		"fresh":  int64(9),
	}

	got := conformNumbers(state, fields)
	want := map[string]any{
		"count":  3,
		"ratio":  2.0,
		"small":  1.5,
		"unsign": int64(-1),
		"name":   int64(7),
		"fresh":  int64(9),
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected conversion:\nwant: %#v\n got: %#v", want, got)
	}
}
