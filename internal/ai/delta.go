package ai

import "github.com/tidwall/gjson"

// DoneSentinel is the data payload a server sends after its last fragment.
const DoneSentinel = "[DONE]"

// MaxPayloadBytes bounds a single data payload. Anything larger is treated
// as malformed rather than parsed.
const MaxPayloadBytes = 1 << 20

const contentPath = "choices.0.delta.content"

// DeltaKind classifies one data payload.
type DeltaKind int

const (
	// DeltaIgnored is well-formed JSON with nothing to append (role-only
	// deltas, empty content, usage frames).
	DeltaIgnored DeltaKind = iota
	// DeltaFragment carries a non-empty piece of assistant text.
	DeltaFragment
	// DeltaTerminal is the end-of-stream sentinel.
	DeltaTerminal
	// DeltaMalformed failed to parse. It is skipped like DeltaIgnored.
	DeltaMalformed
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaFragment:
		return "fragment"
	case DeltaTerminal:
		return "terminal"
	case DeltaMalformed:
		return "malformed"
	default:
		return "ignored"
	}
}

// Delta is the result of ExtractDelta. Text is only set for DeltaFragment.
type Delta struct {
	Kind DeltaKind
	Text string
}

// ExtractDelta classifies a data payload that has already had its data:
// marker and surrounding whitespace removed. It never fails: bad input comes
// back as DeltaMalformed so one broken frame cannot end a stream.
func ExtractDelta(payload string) Delta {
	if payload == DoneSentinel {
		return Delta{Kind: DeltaTerminal}
	}
	if len(payload) > MaxPayloadBytes || !gjson.Valid(payload) {
		return Delta{Kind: DeltaMalformed}
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return Delta{Kind: DeltaIgnored}
	}
	content := doc.Get(contentPath)
	if content.Type != gjson.String || content.Str == "" {
		return Delta{Kind: DeltaIgnored}
	}
	return Delta{Kind: DeltaFragment, Text: content.Str}
}
