package docstore

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Decode copies document fields into out, a pointer to a record struct
// tagged with `firestore:"..."`. RFC3339 strings are accepted for
// time.Time fields so JSON-backed stores decode like native ones.
func Decode(fields Fields, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "firestore",
		Result:  out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			timePtrHook,
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(fields)); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// timePtrHook unwraps *time.Time values some SDKs hand back.
func timePtrHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	if p, ok := data.(*time.Time); ok && p != nil {
		return *p, nil
	}
	return data, nil
}

// Time reads a time-valued field, accepting time.Time or RFC3339 strings.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
