package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_Errors(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		fields []Field
		want   string
	}{
		{"no name", "", []Field{{Name: "a"}}, "name is required"},
		{"no fields", "s", nil, "has no fields"},
		{"unnamed field", "s", []Field{{Name: ""}}, "without a name"},
		{"duplicate", "s", []Field{{Name: "a"}, {Name: "a"}}, "duplicate field"},
		{"two markers", "s", []Field{
			{Name: "a", Strategy: StrategyMarker},
			{Name: "b", Strategy: StrategyMarker},
		}, "only one marker field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.schema, tt.fields...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustSchema_Panics(t *testing.T) {
	assert.Panics(t, func() { MustSchema("") })
}

func TestSchema_Accessors(t *testing.T) {
	s := youtubeSchema()

	assert.Equal(t, "youtube", s.Name())
	assert.Equal(t, []string{"youtube_title", "youtube_description", "thumbnail_image_description"}, s.Names())
	assert.Equal(t, s.Names(), s.Required())

	f, ok := s.Field("youtube_description")
	require.True(t, ok)
	assert.True(t, f.Multiline)
	assert.True(t, f.UnescapeNewlines)

	_, ok = s.Field("missing")
	assert.False(t, ok)

	fields := s.Fields()
	fields[0].Name = "changed"
	assert.Equal(t, "youtube_title", s.Names()[0])
}

func TestSchema_JSONSchema(t *testing.T) {
	doc := tweetSchema().JSONSchema()

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"tweet_text"}, doc["required"])
	assert.Len(t, doc["properties"], 2)
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "keyvalue", StrategyKeyValue.String())
	assert.Equal(t, "jsonkey", StrategyJSONKey.String())
	assert.Equal(t, "marker", StrategyMarker.String())
}
