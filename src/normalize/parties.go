package normalize

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"rapport-agent/src/contracts"
)

// partyResolver assigns sender labels to parties in order of appearance.
type partyResolver struct {
	labels map[string]contracts.Party
	first  map[contracts.Party]string
	hints  [2]string
}

func newPartyResolver(p contracts.Personalization) *partyResolver {
	return &partyResolver{
		labels: make(map[string]contracts.Party),
		first:  make(map[contracts.Party]string),
		hints:  [2]string{strings.TrimSpace(p.PartyAName), strings.TrimSpace(p.PartyBName)},
	}
}

func labelKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// resolve returns the party for a sender label.
func (r *partyResolver) resolve(sender string) (contracts.Party, error) {
	key := labelKey(sender)
	if p, ok := r.labels[key]; ok {
		return p, nil
	}

	switch len(r.first) {
	case 0:
		return r.assign(key, sender, contracts.PartyA), nil
	case 1:
		return r.assign(key, sender, contracts.PartyB), nil
	}

	if p, ok := r.matchHint(strings.TrimSpace(sender)); ok {
		r.labels[key] = p
		return p, nil
	}
	return "", ambiguousPartiesError(r.first[contracts.PartyA], r.first[contracts.PartyB], strings.TrimSpace(sender))
}

func (r *partyResolver) assign(key, sender string, p contracts.Party) contracts.Party {
	r.labels[key] = p
	r.first[p] = strings.TrimSpace(sender)
	return p
}

// matchHint fuzzy-matches a third label against the personalization names
// in both directions ("Alex" ~ "Alex Smith" and "Alex Smith" ~ "Alex").
// It succeeds only when exactly one party has the best score.
func (r *partyResolver) matchHint(label string) (contracts.Party, bool) {
	best := map[contracts.Party]int{}
	for i, hint := range r.hints {
		if hint == "" {
			continue
		}
		party := contracts.PartyA
		if i == 1 {
			party = contracts.PartyB
		}
		for _, pair := range [][2]string{{label, hint}, {hint, label}} {
			matches := fuzzy.Find(strings.ToLower(pair[0]), []string{strings.ToLower(pair[1])})
			if len(matches) == 0 {
				continue
			}
			if s, ok := best[party]; !ok || matches[0].Score > s {
				best[party] = matches[0].Score
			}
		}
	}

	switch len(best) {
	case 1:
		for p := range best {
			return p, true
		}
	case 2:
		a, b := best[contracts.PartyA], best[contracts.PartyB]
		if a > b {
			return contracts.PartyA, true
		}
		if b > a {
			return contracts.PartyB, true
		}
	}
	return "", false
}

// label returns the first raw sender label seen for a party.
func (r *partyResolver) label(p contracts.Party) string {
	return r.first[p]
}
