package singer

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"
	"github.com/ajitpratap0/formtap/pkg/testutil"
)

func TestSinkWritesJSONLines(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	sink := NewSink(&out, testutil.TestLogger(t))

	require.NoError(t, sink.WriteSchema(ctx, core.NewSchemaMessage("landings",
		map[string]interface{}{"type": "object"}, []string{"landing_id"}, []string{"submitted_at"})))
	require.NoError(t, sink.WriteRecord(ctx, core.NewRecordMessage("landings",
		map[string]interface{}{"landing_id": "l1"}, "2024-01-01T00:00:00.000000Z")))
	assert.Zero(t, out.Len(), "records stay buffered until a state or flush")

	require.NoError(t, sink.WriteState(ctx, core.NewStateMessage(map[string]interface{}{"bookmarks": map[string]interface{}{}})))

	lines := readLines(t, &out)
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"type":"SCHEMA","stream":"landings","schema":{"type":"object"},"key_properties":["landing_id"],"bookmark_properties":["submitted_at"]}`, lines[0])
	assert.JSONEq(t, `{"type":"RECORD","stream":"landings","record":{"landing_id":"l1"},"time_extracted":"2024-01-01T00:00:00.000000Z"}`, lines[1])
	assert.JSONEq(t, `{"type":"STATE","value":{"bookmarks":{}}}`, lines[2])

	require.NoError(t, sink.Close(ctx))
	require.NoError(t, sink.Close(ctx))
	assert.Error(t, sink.WriteRecord(ctx, core.NewRecordMessage("landings", nil, "")))
}

func TestSinkRegistered(t *testing.T) {
	var out bytes.Buffer
	sink, err := registry.CreateSink(config.Component{Type: "singer"}, registry.Env{Out: &out})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.WriteRecord(ctx, core.NewRecordMessage("forms", map[string]interface{}{"form_id": "f"}, "")))
	require.NoError(t, sink.Flush(ctx))
	assert.True(t, strings.HasPrefix(out.String(), `{"type":"RECORD"`))
}

func readLines(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}
