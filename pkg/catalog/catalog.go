// Package catalog builds the Singer catalog of the tap: embedded JSON
// Schemas, key properties, replication settings and per-field metadata.
package catalog

import (
	"embed"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Replication methods.
const (
	FullTable   = "FULL_TABLE"
	Incremental = "INCREMENTAL"
)

// Metadata keys.
const (
	MetaSelected           = "selected"
	MetaSelectedByDefault  = "selected-by-default"
	MetaInclusion          = "inclusion"
	MetaTableKeyProperties = "table-key-properties"
	MetaValidReplKeys      = "valid-replication-keys"
	MetaForcedReplMethod   = "forced-replication-method"

	InclusionAutomatic = "automatic"
	InclusionAvailable = "available"
)

type streamDef struct {
	keys      []string
	method    string
	replKey   string
	bookmarks []string
}

var definitions = map[string]streamDef{
	config.StreamForms:     {keys: []string{"form_id"}, method: FullTable},
	config.StreamQuestions: {keys: []string{"form_id", "question_id"}, method: FullTable},
	config.StreamLandings:  {keys: []string{"landing_id"}, method: Incremental, replKey: "submitted_at"},
	config.StreamAnswers:   {keys: []string{"landing_id", "question_id"}, method: Incremental, replKey: "submitted_at"},
}

// MetadataEntry is one breadcrumb of stream metadata.
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Stream is a catalog entry.
type Stream struct {
	TapStreamID       string          `json:"tap_stream_id"`
	Stream            string          `json:"stream"`
	Schema            *Schema         `json:"schema"`
	KeyProperties     []string        `json:"key_properties"`
	ReplicationMethod string          `json:"replication_method,omitempty"`
	ReplicationKey    string          `json:"replication_key,omitempty"`
	Metadata          []MetadataEntry `json:"metadata"`
}

// Catalog is the document printed by discover and read by sync.
type Catalog struct {
	Streams []*Stream `json:"streams"`
}

// LoadSchema returns the embedded JSON Schema of a stream.
func LoadSchema(stream string) (*Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + stream + ".json")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unknown stream schema").
			WithDetail("stream", stream)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid embedded schema").
			WithDetail("stream", stream)
	}
	return &s, nil
}

// Discover builds the full catalog with nothing selected.
func Discover() (*Catalog, error) {
	c := &Catalog{}
	for _, name := range config.KnownStreams {
		schema, err := LoadSchema(name)
		if err != nil {
			return nil, err
		}
		def := definitions[name]

		root := map[string]interface{}{
			MetaTableKeyProperties: def.keys,
			MetaForcedReplMethod:   def.method,
		}
		if def.replKey != "" {
			root[MetaValidReplKeys] = []string{def.replKey}
		} else {
			root[MetaValidReplKeys] = []string{}
		}

		md := []MetadataEntry{{Breadcrumb: []string{}, Metadata: root}}
		for _, field := range sortedProperties(schema) {
			inclusion := InclusionAvailable
			if contains(def.keys, field) {
				inclusion = InclusionAutomatic
			}
			md = append(md, MetadataEntry{
				Breadcrumb: []string{"properties", field},
				Metadata:   map[string]interface{}{MetaInclusion: inclusion},
			})
		}

		c.Streams = append(c.Streams, &Stream{
			TapStreamID:       name,
			Stream:            name,
			Schema:            schema,
			KeyProperties:     def.keys,
			ReplicationMethod: def.method,
			ReplicationKey:    def.replKey,
			Metadata:          md,
		})
	}
	return c, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open catalog").
			WithDetail("path", path)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a catalog document.
func Read(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse catalog")
	}
	for _, s := range c.Streams {
		if s.TapStreamID == "" {
			s.TapStreamID = s.Stream
		}
		if !config.IsKnownStream(s.TapStreamID) {
			return nil, errors.Newf(errors.ErrorTypeConfig, "catalog names unknown stream %q", s.TapStreamID)
		}
		if s.Schema == nil {
			schema, err := LoadSchema(s.TapStreamID)
			if err != nil {
				return nil, err
			}
			s.Schema = schema
		}
		if len(s.KeyProperties) == 0 {
			s.KeyProperties = definitions[s.TapStreamID].keys
		}
	}
	return &c, nil
}

// Write encodes the catalog with indentation.
func (c *Catalog) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Get returns the entry for a stream, or nil.
func (c *Catalog) Get(stream string) *Stream {
	for _, s := range c.Streams {
		if s.TapStreamID == stream {
			return s
		}
	}
	return nil
}

// SelectAll marks every stream accepted by keep, and all of its fields,
// as selected.
func (c *Catalog) SelectAll(keep func(stream string) bool) {
	for _, s := range c.Streams {
		selected := keep == nil || keep(s.TapStreamID)
		for i := range s.Metadata {
			if s.Metadata[i].Metadata == nil {
				s.Metadata[i].Metadata = map[string]interface{}{}
			}
			s.Metadata[i].Metadata[MetaSelected] = selected
		}
	}
}

// Selected returns the selected streams in catalog order.
func (c *Catalog) Selected() []*Stream {
	var out []*Stream
	for _, s := range c.Streams {
		if s.IsSelected() {
			out = append(out, s)
		}
	}
	return out
}

// IsSelected reports whether the stream's root metadata selects it.
func (s *Stream) IsSelected() bool {
	if s == nil {
		return false
	}
	root := s.metadataFor(nil)
	return isTrue(root[MetaSelected])
}

// FieldSelected reports whether a field is emitted: it is selected, or its
// inclusion is automatic. A field without an explicit selected flag falls
// back to selected-by-default.
func (s *Stream) FieldSelected(field string) bool {
	m := s.metadataFor([]string{"properties", field})
	if m == nil {
		return false
	}
	if m[MetaInclusion] == InclusionAutomatic {
		return true
	}
	if v, ok := m[MetaSelected]; ok {
		return isTrue(v)
	}
	return isTrue(m[MetaSelectedByDefault])
}

// BookmarkProperties returns the replication key as a list, if any.
func (s *Stream) BookmarkProperties() []string {
	if s.ReplicationKey == "" {
		return nil
	}
	return []string{s.ReplicationKey}
}

func (s *Stream) metadataFor(breadcrumb []string) map[string]interface{} {
	for _, e := range s.Metadata {
		if equalPath(e.Breadcrumb, breadcrumb) {
			return e.Metadata
		}
	}
	return nil
}

func sortedProperties(s *Schema) []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}
