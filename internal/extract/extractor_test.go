package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tweetSchema() *Schema {
	return MustSchema("tweet",
		Field{Name: "tweet_text", Required: true},
		Field{Name: "image_description"},
	)
}

func instagramSchema() *Schema {
	return MustSchema("instagram",
		Field{Name: "post_caption", Required: true, Strategy: StrategyMarker},
		Field{Name: "image_description", Strategy: StrategyJSONKey, StripQuotes: true},
	)
}

func youtubeSchema() *Schema {
	return MustSchema("youtube",
		Field{Name: "youtube_title", Required: true},
		Field{Name: "youtube_description", Required: true, Multiline: true, UnescapeNewlines: true},
		Field{Name: "thumbnail_image_description", Required: true},
	)
}

func TestExtract_StrictDecodePassthrough(t *testing.T) {
	raw := `{"tweet_text": "  \"quoted\", spaced  ", "image_description": null}`

	rec := Extract(raw, tweetSchema())
	assert.Equal(t, `  "quoted", spaced  `, rec.Get("tweet_text"))
	assert.Equal(t, "", rec.Get("image_description"))
	assert.Equal(t, LayerJSON, rec.Source("tweet_text"))
	assert.Equal(t, LayerJSON, rec.Source("image_description"))
}

func TestExtract_StrictDecodeNonStringValues(t *testing.T) {
	raw := `{"tweet_text": 42, "image_description": {"a": 1}}`

	rec := Extract(raw, tweetSchema())
	assert.Equal(t, "42", rec.Get("tweet_text"))
	assert.Equal(t, `{"a":1}`, rec.Get("image_description"))
}

func TestExtract_StrictDecodeInsideFence(t *testing.T) {
	raw := "Sure!\n```json\n{\"tweet_text\": \"hi\"}\n```"

	rec := Extract(raw, tweetSchema())
	assert.Equal(t, "hi", rec.Get("tweet_text"))
	assert.Equal(t, LayerJSON, rec.Source("tweet_text"))
}

func TestExtract_MissingRequiredFallsThrough(t *testing.T) {
	var events []Event
	e := New(WithObserver(func(ev Event) { events = append(events, ev) }))

	rec := e.Extract(`{"image_description": "x"}`, tweetSchema())
	assert.Equal(t, "", rec.Get("tweet_text"))
	assert.Equal(t, LayerNone, rec.Source("tweet_text"))

	require.NotEmpty(t, events)
	assert.Equal(t, EventFallback, events[0].Kind)
	assert.Equal(t, LayerJSON, events[0].Layer)
	assert.Equal(t, "schema mismatch", events[0].Reason)
	assert.Contains(t, events, Event{Kind: EventUnresolved, Schema: "tweet", Field: "tweet_text", Layer: LayerNone})
}

func TestExtract_InstagramJSON(t *testing.T) {
	raw := `{"post_caption": "$#Great coin! #BTC#$", "image_description": "chart, \"green\", up"}`

	rec := Extract(raw, instagramSchema())
	assert.Equal(t, "Great coin! #BTC", rec.Get("post_caption"))
	assert.Equal(t, "chart, green, up", rec.Get("image_description"))
}

func TestExtract_MarkerInLooseText(t *testing.T) {
	raw := "Here is your post:\n$# Buy the dip #$\nimage_description: a chart"

	rec := Extract(raw, instagramSchema())
	assert.Equal(t, "Buy the dip", rec.Get("post_caption"))
	assert.Equal(t, LayerMarker, rec.Source("post_caption"))
	assert.Equal(t, "a chart", rec.Get("image_description"))
	assert.Equal(t, LayerKeyValue, rec.Source("image_description"))
}

func TestExtract_MarkerValueIsCleaned(t *testing.T) {
	rec := Extract("Here you go: $# \"Great coin!\", #$ done", instagramSchema())
	assert.Equal(t, "Great coin!", rec.Get("post_caption"))
	assert.Equal(t, LayerMarker, rec.Source("post_caption"))
}

func TestExtract_MarkerDegenerate(t *testing.T) {
	rec := Extract("#$ bad $#\npost_caption: hello", instagramSchema())
	assert.Equal(t, "", rec.Get("post_caption"))
	assert.Equal(t, LayerMarker, rec.Source("post_caption"))
}

func TestExtract_MarkerMissingUsesLineScan(t *testing.T) {
	rec := Extract("post_caption: Hello there", instagramSchema())
	assert.Equal(t, "Hello there", rec.Get("post_caption"))
	assert.Equal(t, LayerKeyValue, rec.Source("post_caption"))
}

func TestExtract_MarkerMissingUsesRawText(t *testing.T) {
	raw := "  just some text  "

	rec := Extract(raw, instagramSchema())
	assert.Equal(t, raw, rec.Get("post_caption"))
	assert.Equal(t, LayerRaw, rec.Source("post_caption"))
	assert.Equal(t, "", rec.Get("image_description"))
}

func TestExtract_JSONKeyFragment(t *testing.T) {
	// Marker spans two lines so the object is not valid JSON.
	raw := "{\"post_caption\": \"$#Line one\nline two#$\", \"image_description\": \"a \\\"red\\\" car\"}"

	rec := Extract(raw, instagramSchema())
	assert.Equal(t, "Line one\nline two", rec.Get("post_caption"))
	assert.Equal(t, "a red car", rec.Get("image_description"))
	assert.Equal(t, LayerFragment, rec.Source("image_description"))
}

func TestExtract_KeyValueLastDuplicateWins(t *testing.T) {
	rec := Extract("tweet_text: one\nimage_description: pic\ntweet_text: \"two\",", tweetSchema())
	assert.Equal(t, "two", rec.Get("tweet_text"))
	assert.Equal(t, "pic", rec.Get("image_description"))
}

func TestExtract_YouTubeMultiline(t *testing.T) {
	raw := "{\n" +
		"\"youtube_title\": \"Learn Go\",\n" +
		"\"youtube_description\": \"Line one\\nLine two\n" +
		"Timestamps: 0:00 intro\",\n" +
		"\"thumbnail_image_description\": \"A gopher\"\n" +
		"}"

	rec := Extract(raw, youtubeSchema())
	assert.Equal(t, "Learn Go", rec.Get("youtube_title"))
	assert.Equal(t, "Line one\nLine two Timestamps: 0:00 intro", rec.Get("youtube_description"))
	assert.Equal(t, "A gopher", rec.Get("thumbnail_image_description"))
}

func TestExtract_EmptyText(t *testing.T) {
	rec := Extract("", tweetSchema())
	assert.True(t, rec.IsEmpty())
	assert.Equal(t, []string{"tweet_text", "image_description"}, rec.Fields())
}

func TestExtract_FallbackEvents(t *testing.T) {
	var events []Event
	e := New(WithObserver(func(ev Event) { events = append(events, ev) }))

	e.Extract("post_caption: hi", instagramSchema())

	assert.Contains(t, events, Event{Kind: EventFallback, Schema: "instagram", Field: "post_caption", Layer: LayerMarker, Next: LayerKeyValue, Reason: "not found"})
	assert.Contains(t, events, Event{Kind: EventFallback, Schema: "instagram", Field: "image_description", Layer: LayerFragment, Next: LayerKeyValue, Reason: "not found"})
	assert.Contains(t, events, Event{Kind: EventResolved, Schema: "instagram", Field: "post_caption", Layer: LayerKeyValue})
}

func TestRecord_MarshalJSONKeepsSchemaOrder(t *testing.T) {
	rec := Extract(`{"image_description": "pic", "tweet_text": "a"}`, tweetSchema())

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"tweet_text":"a","image_description":"pic"}`, string(b))
}

func TestEmptyRecord(t *testing.T) {
	rec := EmptyRecord(youtubeSchema())

	assert.True(t, rec.IsEmpty())
	assert.Equal(t, "youtube", rec.Schema())
	assert.Len(t, rec.Map(), 3)
	for _, n := range rec.Fields() {
		assert.Equal(t, LayerNone, rec.Source(n))
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"youtube_title":"","youtube_description":"","thumbnail_image_description":""}`, string(b))
}

func TestRecord_MapIsCopy(t *testing.T) {
	rec := Extract(`{"tweet_text": "a"}`, tweetSchema())
	m := rec.Map()
	m["tweet_text"] = "changed"
	assert.Equal(t, "a", rec.Get("tweet_text"))
}
