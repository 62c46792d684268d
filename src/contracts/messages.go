// Package contracts defines the data structures shared between the normalizer,
// the classifier suite, the orchestrator and the job manager.
package contracts

import "time"

// Format is the declared import format of a raw conversation.
// It only selects which line grammar the normalizer tries first.
type Format string

const (
	FormatPaste      Format = "paste"
	FormatFile       Format = "file"
	FormatScreenshot Format = "screenshot"
)

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPaste, FormatFile, FormatScreenshot:
		return true
	}
	return false
}

// Party identifies one side of a two-party conversation.
type Party string

const (
	PartyA Party = "A"
	PartyB Party = "B"
)

// Other returns the opposite party.
func (p Party) Other() Party {
	if p == PartyA {
		return PartyB
	}
	return PartyA
}

// Direction is relative to party A, which is treated as the exporting user.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// CanonicalMessage is a normalized, ordered, two-party-attributed unit of conversation text.
type CanonicalMessage struct {
	// Position in the timeline, starting at 1. Increases with Timestamp.
	SequenceID int `json:"sequence_id"`
	// Parsed or inherited time of the message.
	Timestamp time.Time `json:"timestamp"`
	// Party the message is attributed to.
	Party Party `json:"party"`
	// Sender label exactly as it appeared in the export.
	RawSender string `json:"raw_sender"`
	// Message body; continuation lines are joined with "\n".
	Content string `json:"content"`
	Direction Direction `json:"direction"`
	// Length in user-perceived characters (grapheme clusters).
	Length int `json:"length"`
	// Time since the previous message. Nil only for the first message.
	GapFromPrevious *time.Duration `json:"gap_from_previous,omitempty"`
}

// Personalization carries display labels. It never influences classification.
type Personalization struct {
	PartyAName   string `json:"party_a_name,omitempty" yaml:"party_a_name"`
	PartyBName   string `json:"party_b_name,omitempty" yaml:"party_b_name"`
	AnalysisGoal string `json:"analysis_goal,omitempty" yaml:"analysis_goal"`
}

// NameFor returns the display name for a party, falling back to fallback when unset.
func (p Personalization) NameFor(party Party, fallback string) string {
	name := p.PartyAName
	if party == PartyB {
		name = p.PartyBName
	}
	if name == "" {
		return fallback
	}
	return name
}

// AnalysisInput is a single submission: raw text (or raw bytes for extraction)
// plus its declared format and labels.
type AnalysisInput struct {
	// Already-extracted plain text.
	Content string `json:"content"`
	// Raw image/PDF bytes that must go through the extraction collaborator first.
	// Only consulted when Content is empty.
	Raw []byte `json:"raw,omitempty"`
	// Optional file name or MIME hint for Raw.
	SourceName      string          `json:"source_name,omitempty"`
	Format          Format          `json:"format"`
	Personalization Personalization `json:"personalization"`
}

// Size returns the number of bytes the submission carries.
func (in AnalysisInput) Size() int64 {
	if in.Content != "" {
		return int64(len(in.Content))
	}
	return int64(len(in.Raw))
}

// NeedsExtraction reports whether the input must pass through the extraction collaborator.
func (in AnalysisInput) NeedsExtraction() bool {
	return in.Content == "" && len(in.Raw) > 0
}
