package extract

import (
	"go.uber.org/zap"
)

// EventKind distinguishes extraction events.
type EventKind string

const (
	// EventResolved is emitted once per field with the layer that produced it.
	EventResolved EventKind = "resolved"
	// EventFallback is emitted when a layer gives up and the next one runs.
	EventFallback EventKind = "fallback"
	// EventUnresolved is emitted when a required field ends up empty.
	EventUnresolved EventKind = "unresolved"
)

// Event describes one step of an extraction.
type Event struct {
	Kind   EventKind
	Schema string
	Field  string // empty for record-level events
	Layer  Layer
	Next   Layer
	Reason string
}

// Observer receives extraction events. It must be safe for concurrent use.
type Observer func(Event)

// Extractor turns raw model text into records. The zero value is usable.
type Extractor struct {
	observe Observer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithObserver registers fn to receive every extraction event.
func WithObserver(fn Observer) Option {
	return func(e *Extractor) { e.observe = fn }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// fieldParser is one link of a per-field fallback chain.
type fieldParser struct {
	layer Layer
	parse func(raw string, f Field, lines map[string]string) (value string, ok bool, stop bool)
}

var (
	fragmentParser = fieldParser{layer: LayerFragment, parse: func(raw string, f Field, _ map[string]string) (string, bool, bool) {
		v, ok := jsonFragment(raw, f.Name)
		return Cleanup(v), ok, false
	}}

	markerParser = fieldParser{layer: LayerMarker, parse: func(raw string, _ Field, _ map[string]string) (string, bool, bool) {
		v, res := markerSpan(raw)
		switch res {
		case markerFound:
			return Cleanup(v), true, false
		case markerDegenerate:
			return "", true, true
		default:
			return "", false, false
		}
	}}

	lineParser = fieldParser{layer: LayerKeyValue, parse: func(_ string, f Field, lines map[string]string) (string, bool, bool) {
		v, ok := lines[f.Name]
		return v, ok, false
	}}

	rawParser = fieldParser{layer: LayerRaw, parse: func(raw string, _ Field, _ map[string]string) (string, bool, bool) {
		return raw, true, false
	}}
)

func chainFor(s Strategy) []fieldParser {
	switch s {
	case StrategyMarker:
		return []fieldParser{markerParser, lineParser, rawParser}
	case StrategyJSONKey:
		return []fieldParser{fragmentParser, lineParser}
	default:
		return []fieldParser{lineParser}
	}
}

// Extract recovers every field of s from raw. It never fails; fields that
// cannot be recovered are "".
func (e *Extractor) Extract(raw string, s *Schema) Record {
	obj, reason := decodeStrict(raw, s)
	if obj != nil {
		return e.fromJSON(obj, s)
	}
	e.emit(Event{Kind: EventFallback, Schema: s.Name(), Layer: LayerJSON, Next: LayerKeyValue, Reason: reason})

	rec := newRecord(s)
	lines := scanLines(raw, s)

	for _, f := range s.fields {
		value, layer := "", LayerNone
		chain := chainFor(f.Strategy)
		for i, p := range chain {
			v, ok, stop := p.parse(raw, f, lines)
			if ok {
				value, layer = v, p.layer
				break
			}
			if stop {
				break
			}
			if i+1 < len(chain) {
				e.emit(Event{Kind: EventFallback, Schema: s.Name(), Field: f.Name, Layer: p.layer, Next: chain[i+1].layer, Reason: "not found"})
			}
		}
		e.set(&rec, f, applyFilters(f, value), layer)
	}
	return rec
}

func (e *Extractor) fromJSON(obj map[string]any, s *Schema) Record {
	rec := newRecord(s)
	for _, f := range s.fields {
		v := jsonText(obj[f.Name])
		if f.Strategy == StrategyMarker {
			switch span, res := markerSpan(v); res {
			case markerFound:
				v = span
			case markerDegenerate:
				v = ""
			}
		}
		e.set(&rec, f, applyFilters(f, v), LayerJSON)
	}
	return rec
}

func (e *Extractor) set(rec *Record, f Field, value string, layer Layer) {
	rec.values[f.Name] = value
	rec.sources[f.Name] = layer

	e.emit(Event{Kind: EventResolved, Schema: rec.schema, Field: f.Name, Layer: layer})
	if f.Required && value == "" {
		e.emit(Event{Kind: EventUnresolved, Schema: rec.schema, Field: f.Name, Layer: layer})
	}
}

func (e *Extractor) emit(ev Event) {
	if ev.Kind != EventResolved {
		zap.L().Info("extract: "+string(ev.Kind),
			zap.String("schema", ev.Schema),
			zap.String("field", ev.Field),
			zap.String("layer", string(ev.Layer)),
			zap.String("next", string(ev.Next)),
			zap.String("reason", ev.Reason),
		)
	}
	if e != nil && e.observe != nil {
		e.observe(ev)
	}
}

var defaultExtractor = New()

// Extract runs the default extractor.
func Extract(raw string, s *Schema) Record {
	return defaultExtractor.Extract(raw, s)
}
