package transform

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

func landingsStream(t *testing.T, selectAll bool) *catalog.Stream {
	t.Helper()
	c, err := catalog.Discover()
	require.NoError(t, err)
	if selectAll {
		c.SelectAll(nil)
	}
	return c.Get(config.StreamLandings)
}

func TestRecord(t *testing.T) {
	t.Run("selected fields are normalised", func(t *testing.T) {
		row := map[string]interface{}{
			"landing_id":   "l1",
			"form_id":      "f1",
			"submitted_at": "2024-01-02T03:04:05Z",
			"landed_at":    "2024-01-02 03:00:00",
			"referer":      "",
			"hidden":       `{"utm":"x"}`,
			"unknown":      "dropped",
		}

		out, err := Record(landingsStream(t, true), row)
		require.NoError(t, err)

		assert.Equal(t, "l1", out["landing_id"])
		assert.Equal(t, "2024-01-02T03:04:05.000000Z", out["submitted_at"])
		assert.Equal(t, "2024-01-02T03:00:00.000000Z", out["landed_at"])
		assert.Contains(t, out, "referer")
		assert.Nil(t, out["referer"])
		assert.Equal(t, `{"utm":"x"}`, out["hidden"])
		assert.NotContains(t, out, "unknown")
	})

	t.Run("unselected fields are dropped", func(t *testing.T) {
		row := map[string]interface{}{
			"landing_id": "l1",
			"referer":    "https://example.com",
		}

		out, err := Record(landingsStream(t, false), row)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"landing_id": "l1"}, out)
	})

	t.Run("bad date is a data error", func(t *testing.T) {
		_, err := Record(landingsStream(t, true), map[string]interface{}{"submitted_at": "last tuesday"})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
		assert.Contains(t, err.Error(), "failed to transform field")
	})
}

func TestValueInteger(t *testing.T) {
	prop := &catalog.Schema{Type: catalog.TypeList{"null", "integer"}}

	tests := []struct {
		name    string
		in      interface{}
		want    interface{}
		wantErr bool
	}{
		{name: "float", in: 42.0, want: int64(42)},
		{name: "number", in: json.Number("7"), want: int64(7)},
		{name: "exponent number", in: json.Number("1e3"), want: int64(1000)},
		{name: "string", in: "12", want: int64(12)},
		{name: "empty string", in: "", want: nil},
		{name: "nil", in: nil, want: nil},
		{name: "fraction", in: 1.5, wantErr: true},
		{name: "text", in: "twelve", wantErr: true},
		{name: "bool", in: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Value(prop, tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueDateTime(t *testing.T) {
	prop := &catalog.Schema{Type: catalog.TypeList{"null", "string"}, Format: "date-time"}

	got, err := Value(prop, "2024-05-06T07:08:09.123+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06T05:08:09.123000Z", got)

	got, err = Value(prop, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", got)

	got, err = Value(prop, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", got)
}

func TestValuePassThrough(t *testing.T) {
	prop := &catalog.Schema{Type: catalog.TypeList{"null", "boolean"}}
	got, err := Value(prop, false)
	require.NoError(t, err)
	assert.Equal(t, false, got)
}
