package normalize

import (
	"encoding/csv"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"rapport-agent/src/contracts"
)

// GrammarTag names a line grammar.
type GrammarTag string

const (
	GrammarTimestamped GrammarTag = "timestamped"
	GrammarBracketed   GrammarTag = "bracketed"
	GrammarDashed      GrammarTag = "dashed"
	GrammarISO         GrammarTag = "iso"
	GrammarCSV         GrammarTag = "csv"
	GrammarBare        GrammarTag = "bare"
)

// header is the start of a message recognised by a grammar.
type header struct {
	sender string
	text   string
	// Zero when the grammar carries no timestamp.
	at       time.Time
	timeOnly bool
	tod      time.Duration
}

// grammar is one independent line parser.
type grammar struct {
	tag   GrammarTag
	match func(line string) (header, bool)
}

const maxSenderRunes = 64

// Message-boundary patterns, compiled once at package init.
var (
	clockExpr = `\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp]\.?[Mm]\.?)?`
	dateExpr  = `\d{1,2}[/.]\d{1,2}[/.]\d{2,4}`

	// 10:00 Alice: hey
	timestampedPattern = regexp.MustCompile(`^(` + clockExpr + `)\s+([^:]+?):\s?(.*)$`)

	// [1/2/24, 9:00:12 PM] Alice: hey
	bracketedPattern = regexp.MustCompile(`^\[(` + dateExpr + `),?\s+(` + clockExpr + `)\]\s*([^:]+?):\s?(.*)$`)

	// 1/2/24, 9:00 PM - Alice: hey
	dashedPattern = regexp.MustCompile(`^(` + dateExpr + `),?\s+(` + clockExpr + `)\s+-\s+([^:]+?):\s?(.*)$`)

	// 2024-01-02 10:00:00 Alice: hey
	isoPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(?::\d{2})?)\s+([^:]+?):\s?(.*)$`)

	// Alice: hey
	barePattern = regexp.MustCompile(`^([^:\s\d][^:]*?):\s+(\S.*)$`)
)

var grammars = map[GrammarTag]grammar{
	GrammarTimestamped: {GrammarTimestamped, matchTimestamped},
	GrammarBracketed:   {GrammarBracketed, matchBracketed},
	GrammarDashed:      {GrammarDashed, matchDashed},
	GrammarISO:         {GrammarISO, matchISO},
	GrammarCSV:         {GrammarCSV, matchCSV},
	GrammarBare:        {GrammarBare, matchBare},
}

// grammarOrder is the priority in which grammars are tried for each format.
var grammarOrder = map[contracts.Format][]GrammarTag{
	contracts.FormatPaste:      {GrammarTimestamped, GrammarBracketed, GrammarDashed, GrammarISO, GrammarBare, GrammarCSV},
	contracts.FormatFile:       {GrammarCSV, GrammarBracketed, GrammarDashed, GrammarISO, GrammarTimestamped, GrammarBare},
	contracts.FormatScreenshot: {GrammarTimestamped, GrammarBare, GrammarBracketed, GrammarDashed, GrammarISO, GrammarCSV},
}

// GrammarOrder returns the grammar priority for a format.
// Unknown formats use the paste order.
func GrammarOrder(f contracts.Format) []GrammarTag {
	if order, ok := grammarOrder[f]; ok {
		return order
	}
	return grammarOrder[contracts.FormatPaste]
}

func matchTimestamped(line string) (header, bool) {
	m := timestampedPattern.FindStringSubmatch(line)
	if m == nil || !validSender(m[2]) {
		return header{}, false
	}
	tod, ok := parseClock(m[1])
	if !ok {
		return header{}, false
	}
	return header{sender: m[2], text: m[3], timeOnly: true, tod: tod}, true
}

func matchBracketed(line string) (header, bool) {
	m := bracketedPattern.FindStringSubmatch(line)
	if m == nil || !validSender(m[3]) {
		return header{}, false
	}
	at, ok := parseDateClock(m[1], m[2])
	if !ok {
		return header{}, false
	}
	return header{sender: m[3], text: m[4], at: at}, true
}

func matchDashed(line string) (header, bool) {
	m := dashedPattern.FindStringSubmatch(line)
	if m == nil || !validSender(m[3]) {
		return header{}, false
	}
	at, ok := parseDateClock(m[1], m[2])
	if !ok {
		return header{}, false
	}
	return header{sender: m[3], text: m[4], at: at}, true
}

func matchISO(line string) (header, bool) {
	m := isoPattern.FindStringSubmatch(line)
	if m == nil || !validSender(m[2]) {
		return header{}, false
	}
	at, _, ok := parseAny(strings.Replace(m[1], "T", " ", 1))
	if !ok {
		return header{}, false
	}
	return header{sender: m[2], text: m[3], at: at}, true
}

// matchCSV accepts "timestamp,sender,text" rows. Quoted fields may contain commas
// but not newlines. A header row fails the timestamp check and is not a match.
func matchCSV(line string) (header, bool) {
	if !strings.Contains(line, ",") {
		return header{}, false
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rec, err := r.Read()
	if err != nil || len(rec) < 3 {
		return header{}, false
	}
	at, timeOnly, ok := parseAny(rec[0])
	if !ok || !validSender(rec[1]) {
		return header{}, false
	}
	text := strings.Join(rec[2:], ",")
	h := header{sender: rec[1], text: text, at: at}
	if timeOnly {
		h = header{sender: rec[1], text: text, timeOnly: true, tod: at.Sub(baseDate)}
	}
	return h, true
}

func matchBare(line string) (header, bool) {
	m := barePattern.FindStringSubmatch(line)
	if m == nil || !validSender(m[1]) {
		return header{}, false
	}
	if len(strings.Fields(m[1])) > 4 {
		return header{}, false
	}
	return header{sender: m[1], text: m[2]}, true
}

func validSender(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxSenderRunes {
		return false
	}
	return !strings.Contains(s, "://")
}

func (h header) timestamped() bool {
	return h.timeOnly || !h.at.IsZero()
}
