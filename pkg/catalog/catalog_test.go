package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

func TestDiscover(t *testing.T) {
	c, err := Discover()
	require.NoError(t, err)
	require.Len(t, c.Streams, 4)

	landings := c.Get(config.StreamLandings)
	require.NotNil(t, landings)
	assert.Equal(t, []string{"landing_id"}, landings.KeyProperties)
	assert.Equal(t, Incremental, landings.ReplicationMethod)
	assert.Equal(t, "submitted_at", landings.ReplicationKey)
	assert.True(t, landings.Schema.Properties["submitted_at"].IsDateTime())
	assert.False(t, landings.IsSelected())

	// key properties are always emitted, others only when selected
	assert.True(t, landings.FieldSelected("landing_id"))
	assert.False(t, landings.FieldSelected("referer"))

	questions := c.Get(config.StreamQuestions)
	require.NotNil(t, questions)
	assert.Equal(t, FullTable, questions.ReplicationMethod)
	assert.Empty(t, questions.BookmarkProperties())
	assert.Equal(t, []string{"form_id", "question_id"}, questions.KeyProperties)

	answers := c.Get(config.StreamAnswers)
	require.NotNil(t, answers)
	assert.Equal(t, []string{"landing_id", "question_id"}, answers.KeyProperties)

	assert.Nil(t, c.Get("votes"))
}

func TestSelectAll(t *testing.T) {
	c, err := Discover()
	require.NoError(t, err)

	c.SelectAll(func(s string) bool { return s != config.StreamForms })

	selected := c.Selected()
	require.Len(t, selected, 3)
	assert.Equal(t, config.StreamQuestions, selected[0].TapStreamID)
	assert.True(t, c.Get(config.StreamLandings).FieldSelected("referer"))
	assert.False(t, c.Get(config.StreamForms).IsSelected())
}

func TestReadRoundTripsSelection(t *testing.T) {
	c, err := Discover()
	require.NoError(t, err)
	c.SelectAll(nil)

	var buf bytes.Buffer
	require.NoError(t, c.Write(&buf))

	read, err := Read(&buf)
	require.NoError(t, err)
	assert.Len(t, read.Selected(), 4)
	assert.True(t, read.Get(config.StreamAnswers).FieldSelected("answer"))
}

func TestReadDeselectedField(t *testing.T) {
	doc := `{"streams":[{
		"tap_stream_id":"landings","stream":"landings",
		"metadata":[
			{"breadcrumb":[],"metadata":{"selected":true}},
			{"breadcrumb":["properties","landing_id"],"metadata":{"inclusion":"automatic"}},
			{"breadcrumb":["properties","referer"],"metadata":{"inclusion":"available","selected":false}},
			{"breadcrumb":["properties","platform"],"metadata":{"inclusion":"available","selected-by-default":true}}
		]}]}`

	c, err := Read(strings.NewReader(doc))
	require.NoError(t, err)

	s := c.Get(config.StreamLandings)
	require.NotNil(t, s)
	require.NotNil(t, s.Schema, "schema is filled from the embedded definition")
	assert.Equal(t, []string{"landing_id"}, s.KeyProperties)
	assert.True(t, s.IsSelected())
	assert.True(t, s.FieldSelected("landing_id"))
	assert.False(t, s.FieldSelected("referer"))
	assert.True(t, s.FieldSelected("platform"))
	assert.False(t, s.FieldSelected("browser"))
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		errorMsg string
	}{
		{name: "malformed", doc: `{"streams":`, errorMsg: "failed to parse catalog"},
		{name: "unknown stream", doc: `{"streams":[{"tap_stream_id":"votes"}]}`, errorMsg: `unknown stream "votes"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestTypeList(t *testing.T) {
	s, err := LoadSchema(config.StreamForms)
	require.NoError(t, err)
	assert.True(t, s.Properties["is_public"].Type.Has("boolean"))
	assert.False(t, s.Properties["title"].IsInteger())

	out, err := TypeList{"integer"}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"integer"`, string(out))
}
