// Package transform applies a stream's schema and field selection to a
// shaped row before it is emitted.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

// DateTimeLayout is the canonical rendering of date-time values.
const DateTimeLayout = "2006-01-02T15:04:05.000000Z"

// Record returns a new row holding only the selected fields of row, with
// empty strings nulled, integers coerced and date-times normalised.
// Fields absent from the schema are dropped.
func Record(stream *catalog.Stream, row map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(row))
	for name, value := range row {
		prop, ok := stream.Schema.Properties[name]
		if !ok || !stream.FieldSelected(name) {
			continue
		}

		v, err := Value(prop, value)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to transform field").
				WithDetail("stream", stream.TapStreamID).
				WithDetail("field", name)
		}
		out[name] = v
	}
	return out, nil
}

// Value converts a single value according to its property schema.
func Value(prop *catalog.Schema, value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok && s == "" {
		return nil, nil
	}
	if value == nil {
		return nil, nil
	}

	switch {
	case prop.IsInteger():
		return toInt(value)
	case prop.IsDateTime():
		return toDateTime(value)
	default:
		return value, nil
	}
}

func toInt(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("%s is not an integer", v)
		}
		return int64(f), nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to integer", value)
	}
}

func toDateTime(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case time.Time:
		return FormatDateTime(v), nil
	case string:
		t, err := config.ParseDate(v)
		if err != nil {
			return nil, err
		}
		return FormatDateTime(t), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to date-time", value)
	}
}

// FormatDateTime renders t in the canonical layout, in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}
