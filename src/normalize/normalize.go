// Package normalize turns a raw conversation export into an ordered,
// two-party canonical message timeline.
//
// Each line is offered to a cascade of independent line grammars in an order
// chosen by the declared import format. A line no grammar accepts continues
// the previous message, or is dropped when no message has started yet.
package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/rivo/uniseg"

	"rapport-agent/src/contracts"
	"rapport-agent/src/sanitize"
)

// DefaultMaxBytes is the size limit applied when Options.MaxBytes is zero.
const DefaultMaxBytes int64 = 50 << 20

// Options tune a single parse.
type Options struct {
	// MaxBytes rejects larger input before any parsing. Zero means DefaultMaxBytes.
	MaxBytes int64
	// Hints resolves a third sender label onto a known party.
	Hints contracts.Personalization
}

// Timeline is the result of normalizing one conversation.
type Timeline struct {
	Messages []contracts.CanonicalMessage
	// Lines is the number of non-blank input lines.
	Lines int
	// DroppedLines counts lines seen before the first message started.
	DroppedLines int
	// Grammars records how many message headers each grammar produced.
	Grammars map[GrammarTag]int

	partyA, partyB string
}

// PartyLabel returns the first raw sender label assigned to a party.
func (t *Timeline) PartyLabel(p contracts.Party) string {
	if p == contracts.PartyA {
		return t.partyA
	}
	return t.partyB
}

// Count returns the number of messages sent by a party.
func (t *Timeline) Count(p contracts.Party) int {
	n := 0
	for _, m := range t.Messages {
		if m.Party == p {
			n++
		}
	}
	return n
}

// Normalize is Parse without hints, returning only the messages.
func Normalize(raw string, format contracts.Format, maxBytes int64) ([]contracts.CanonicalMessage, error) {
	tl, err := Parse(raw, format, Options{MaxBytes: maxBytes})
	if err != nil {
		return nil, err
	}
	return tl.Messages, nil
}

// draft is a message under construction.
type draft struct {
	party  contracts.Party
	sender string
	lines  []string
	at     time.Time
}

// Parse normalizes raw text. It is deterministic: identical input yields an
// identical timeline.
func Parse(raw string, format contracts.Format, opts Options) (*Timeline, error) {
	if err := CheckSize(int64(len(raw)), opts.MaxBytes); err != nil {
		return nil, err
	}

	text := sanitize.Clean(raw)
	text = strings.NewReplacer("\u202f", " ", "\u00a0", " ").Replace(text)
	if strings.TrimSpace(text) == "" {
		return nil, emptyInputError("Paste or upload a chat export with at least one message.")
	}

	order := GrammarOrder(format)
	parties := newPartyResolver(opts.Hints)
	clk := newClock()
	tl := &Timeline{Grammars: make(map[GrammarTag]int)}

	var (
		drafts   []*draft
		cur      *draft
		lastAt   time.Time
		haveLast bool
		dated    bool
	)

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tl.Lines++

		h, tag, ok := matchLine(line, order, dated)
		if !ok {
			if cur == nil {
				tl.DroppedLines++
				continue
			}
			cur.lines = append(cur.lines, strings.TrimRight(line, " \t"))
			continue
		}
		tl.Grammars[tag]++
		dated = dated || h.timestamped()

		party, err := parties.resolve(h.sender)
		if err != nil {
			return nil, err
		}

		var at time.Time
		switch {
		case h.timeOnly:
			at = clk.anchor(h.tod)
		case !h.at.IsZero():
			at = h.at
			clk.observe(at)
		case haveLast:
			at = lastAt.Add(time.Microsecond)
		default:
			at = baseDate
		}
		lastAt, haveLast = at, true

		cur = &draft{
			party:  party,
			sender: strings.TrimSpace(h.sender),
			lines:  []string{strings.TrimSpace(h.text)},
			at:     at,
		}
		drafts = append(drafts, cur)
	}

	if len(drafts) == 0 {
		return nil, emptyInputError("No line matched a known chat format such as \"10:00 Alice: hey\" or \"[1/2/24, 9:00 PM] Alice: hey\".")
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].at.Before(drafts[j].at)
	})

	tl.Messages = make([]contracts.CanonicalMessage, len(drafts))
	for i, d := range drafts {
		content := strings.TrimSpace(strings.Join(d.lines, "\n"))
		msg := contracts.CanonicalMessage{
			SequenceID: i + 1,
			Timestamp:  d.at,
			Party:      d.party,
			RawSender:  d.sender,
			Content:    content,
			Direction:  directionOf(d.party),
			Length:     uniseg.GraphemeClusterCount(content),
		}
		if i > 0 {
			gap := d.at.Sub(drafts[i-1].at)
			msg.GapFromPrevious = &gap
		}
		tl.Messages[i] = msg
	}
	tl.partyA = parties.label(contracts.PartyA)
	tl.partyB = parties.label(contracts.PartyB)
	return tl, nil
}

// matchLine tries grammars in priority order. Once any timestamped grammar has
// matched, the bare grammar is no longer tried, so "Note: ..." inside a
// timestamped export stays a continuation line.
func matchLine(line string, order []GrammarTag, dated bool) (header, GrammarTag, bool) {
	for _, tag := range order {
		if tag == GrammarBare && dated {
			continue
		}
		if h, ok := grammars[tag].match(line); ok {
			return h, tag, true
		}
	}
	return header{}, "", false
}

func directionOf(p contracts.Party) contracts.Direction {
	if p == contracts.PartyA {
		return contracts.DirectionSent
	}
	return contracts.DirectionReceived
}
