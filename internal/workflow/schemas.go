package workflow

import (
	"fmt"

	"github.com/sells-group/social-studio/internal/extract"
)

// Kind names a content workflow.
type Kind string

// Supported workflow kinds.
const (
	KindTweet     Kind = "tweet"
	KindThread    Kind = "thread"
	KindLinkedIn  Kind = "linkedin"
	KindInstagram Kind = "instagram"
	KindYouTube   Kind = "youtube"
	KindVoiceover Kind = "voiceover"
)

// ThreadLength is the number of posts in a thread.
const ThreadLength = 7

var schemas = map[Kind]*extract.Schema{
	KindTweet: extract.MustSchema(string(KindTweet),
		extract.Field{Name: "tweet_text", Required: true},
		extract.Field{Name: "image_description"},
	),
	KindThread: extract.MustSchema(string(KindThread), threadFields()...),
	KindLinkedIn: extract.MustSchema(string(KindLinkedIn),
		extract.Field{Name: "linkedin_text", Required: true, Strategy: extract.StrategyMarker},
		extract.Field{Name: "image_description", Strategy: extract.StrategyJSONKey, StripQuotes: true},
	),
	KindInstagram: extract.MustSchema(string(KindInstagram),
		extract.Field{Name: "post_caption", Required: true, Strategy: extract.StrategyMarker},
		extract.Field{Name: "image_description", Strategy: extract.StrategyJSONKey, StripQuotes: true},
	),
	KindYouTube: extract.MustSchema(string(KindYouTube),
		extract.Field{Name: "youtube_title", Required: true},
		extract.Field{Name: "youtube_description", Required: true, Multiline: true, UnescapeNewlines: true},
		extract.Field{Name: "thumbnail_image_description", Required: true},
	),
	KindVoiceover: extract.MustSchema(string(KindVoiceover),
		extract.Field{Name: "voiceover_script", Required: true, Multiline: true, UnescapeNewlines: true},
	),
}

func threadFields() []extract.Field {
	fields := make([]extract.Field, 0, 2*ThreadLength)
	for i := 1; i <= ThreadLength; i++ {
		fields = append(fields,
			extract.Field{Name: fmt.Sprintf("tweet_text_%d", i), Required: true},
			extract.Field{Name: fmt.Sprintf("image_description_%d", i)},
		)
	}
	return fields
}

// Schema returns the extraction schema of kind.
func Schema(kind Kind) (*extract.Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}
