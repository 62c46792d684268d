package analyze

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Sentiment valences on a -4..4 scale.
var valence = map[string]float64{
	"love": 3.2, "loved": 2.9, "lovely": 2.8, "adore": 3.0, "amazing": 2.8, "awesome": 3.1,
	"great": 3.1, "good": 1.9, "nice": 1.8, "happy": 2.7, "glad": 2.0, "excited": 2.2,
	"thanks": 1.9, "thank": 1.5, "thx": 1.5, "sweet": 2.0, "cute": 2.0, "beautiful": 2.9,
	"wonderful": 2.7, "fun": 2.3, "enjoy": 2.2, "enjoyed": 2.3, "miss": 1.2, "proud": 2.1,
	"best": 3.2, "perfect": 2.7, "yay": 2.4, "haha": 1.6, "hahaha": 1.8, "lol": 1.8,
	"lmao": 2.0, "cool": 1.3, "fine": 0.8, "okay": 0.9, "ok": 0.9, "hug": 2.1, "hugs": 2.2,
	"kiss": 1.8, "appreciate": 2.3, "support": 1.7, "care": 2.2, "laugh": 2.2, "smile": 1.5,
	"bad": -2.5, "sad": -2.1, "angry": -2.3, "mad": -2.2, "upset": -1.9, "hate": -2.7,
	"hurt": -2.4, "annoyed": -1.6, "annoying": -1.8, "tired": -1.0, "sick": -1.6, "terrible": -2.5,
	"awful": -2.0, "horrible": -2.5, "worst": -3.1, "cry": -1.9, "crying": -2.1, "lonely": -2.0,
	"sorry": -0.3, "ugh": -1.8, "disappointed": -2.3, "worried": -1.9, "stressed": -1.9,
	"boring": -1.3, "wrong": -2.1, "fight": -1.9, "ignore": -1.4, "ignored": -1.7, "alone": -1.0,
	"stupid": -2.4, "idiot": -2.3, "useless": -1.8, "pathetic": -2.3, "whatever": -0.8,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "nothing": true, "nobody": true, "none": true,
	"dont": true, "don't": true, "doesnt": true, "doesn't": true, "didnt": true, "didn't": true,
	"isnt": true, "isn't": true, "wasnt": true, "wasn't": true, "arent": true, "aren't": true,
	"cant": true, "can't": true, "wont": true, "won't": true, "aint": true, "ain't": true,
	"couldnt": true, "couldn't": true, "shouldnt": true, "shouldn't": true, "without": true,
}

var boosters = map[string]float64{
	"very": 0.293, "really": 0.293, "so": 0.293, "extremely": 0.293, "super": 0.293,
	"totally": 0.293, "absolutely": 0.293, "incredibly": 0.293, "soo": 0.293, "sooo": 0.293,
	"kinda": -0.293, "slightly": -0.293, "barely": -0.293, "somewhat": -0.293, "sorta": -0.293,
}

// Emoji valences keyed by the first rune of the grapheme cluster.
var emojiValence = map[rune]float64{
	'\u2764':     3.0, // red heart
	'\U0001F60D': 3.0, // heart eyes
	'\U0001F970': 3.0, // smiling face with hearts
	'\U0001F618': 2.5, // kiss
	'\U0001F60A': 2.0, // smiling eyes
	'\U0001F642': 1.0, // slight smile
	'\U0001F604': 2.0, // grin
	'\U0001F601': 2.0, // beaming
	'\U0001F602': 1.8, // tears of joy
	'\U0001F923': 1.8, // rolling on floor
	'\U0001F44D': 1.5, // thumbs up
	'\U0001F495': 2.5, // two hearts
	'\U0001F622': -2.0, // crying
	'\U0001F62D': -2.2, // sobbing
	'\U0001F621': -2.8, // pouting
	'\U0001F620': -2.5, // angry
	'\U0001F494': -2.8, // broken heart
	'\U0001F644': -1.5, // eye roll
	'\U0001F61E': -1.8, // disappointed
	'\U0001F44E': -1.5, // thumbs down
}

const (
	negationScalar = -0.74
	capsBoost      = 0.733
	exclaimBoost   = 0.292
	normalizeAlpha = 15.0
)

var tokenPattern = regexp.MustCompile(`[A-Za-z']+`)

// ScorePolarity returns a compound sentiment score in [-1, 1].
func ScorePolarity(text string) float64 {
	raw := tokenPattern.FindAllString(text, -1)
	mixedCase := !isAllCaps(text)

	var sum float64
	for i, tok := range raw {
		word := strings.ToLower(tok)
		v, ok := valence[word]
		if !ok {
			continue
		}
		if mixedCase && len(tok) > 1 && tok == strings.ToUpper(tok) {
			v += math.Copysign(capsBoost, v)
		}
		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := strings.ToLower(raw[i-back])
			if back == 1 {
				if b, ok := boosters[prev]; ok {
					v += math.Copysign(b, v)
				}
			}
			if negators[prev] {
				v *= negationScalar
				break
			}
		}
		sum += v
	}

	for _, v := range emojiScores(text) {
		sum += v
	}

	if sum != 0 {
		bangs := strings.Count(text, "!")
		if bangs > 4 {
			bangs = 4
		}
		sum += math.Copysign(float64(bangs)*exclaimBoost, sum)
	}

	if sum == 0 {
		return 0
	}
	return clamp(sum/math.Sqrt(sum*sum+normalizeAlpha), -1, 1)
}

func emojiScores(text string) []float64 {
	var out []float64
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		r := g.Runes()
		if len(r) == 0 {
			continue
		}
		if v, ok := emojiValence[r[0]]; ok {
			out = append(out, v)
		}
	}
	return out
}

// CountEmoji returns the number of emoji grapheme clusters in text.
func CountEmoji(text string) int {
	n := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		r := g.Runes()
		if len(r) > 0 && isEmojiRune(r[0]) {
			n++
		}
	}
	return n
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}

func isAllCaps(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters > 0 && upper == letters
}

// toxicCategory is one weighted group of toxic terms.
type toxicCategory struct {
	name    string
	weight  float64
	pattern *regexp.Regexp
}

func wordsPattern(terms ...string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Toxicity categories, compiled once at package init.
var toxicCategories = []toxicCategory{
	{"threat", 0.8, wordsPattern("kill you", "hurt you", "you'll regret", "you will regret", "watch yourself", "or else", "ruin your life")},
	{"insult", 0.5, wordsPattern("idiot", "stupid", "dumb", "moron", "loser", "pathetic", "worthless", "useless", "ugly", "psycho", "jerk", "clown", "trash")},
	{"profanity", 0.4, wordsPattern("fuck", "fucking", "fucked", "shit", "bitch", "asshole", "bastard", "dick", "wtf", "stfu")},
	{"contempt", 0.35, wordsPattern("shut up", "get lost", "nobody cares", "i don't care", "grow up", "you always", "you never", "disgusting", "hate you", "whatever", "so what")},
	{"mild", 0.15, wordsPattern("damn", "crap", "hell", "piss off", "ugh")},
}

var exclaimRun = regexp.MustCompile(`!{3,}`)

const (
	shoutWeight   = 0.2
	exclaimWeight = 0.1
)

// ScoreToxicity returns a toxicity probability in [0, 1].
// Category hits combine as independent events: 1 - prod(1 - w).
func ScoreToxicity(text string) float64 {
	keep := 1.0
	for _, c := range toxicCategories {
		hits := len(c.pattern.FindAllStringIndex(text, -1))
		for i := 0; i < hits; i++ {
			keep *= 1 - c.weight
		}
	}
	if isShouting(text) {
		keep *= 1 - shoutWeight
	}
	if exclaimRun.MatchString(text) {
		keep *= 1 - exclaimWeight
	}
	return clamp(1-keep, 0, 1)
}

func isShouting(text string) bool {
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 6 && isAllCaps(text)
}
