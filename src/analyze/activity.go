package analyze

import (
	"fmt"
	"time"

	"rapport-agent/src/contracts"
)

// PartyWeekdays is one party's weekday/weekend split.
type PartyWeekdays struct {
	Messages     int     `json:"messages"`
	Weekday      int     `json:"weekday"`
	Weekend      int     `json:"weekend"`
	WeekendShare float64 `json:"weekend_share"`
	BusiestDay   string  `json:"busiest_day,omitempty"`
	// Indexed by time.Weekday, Sunday first.
	ByDay [7]int `json:"by_day"`
}

// WeekdayActivityResult compares when in the week each party writes.
type WeekdayActivityResult struct {
	Summary    string               `json:"summary"`
	PartyA     PartyWeekdays        `json:"party_a"`
	PartyB     PartyWeekdays        `json:"party_b"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *WeekdayActivityResult) MetricID() contracts.ClassifierID {
	return contracts.ClassifierWeekdayActivity
}
func (r *WeekdayActivityResult) MetricSummary() string { return r.Summary }

func (r *WeekdayActivityResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_weekend_share", fmtFloat(r.PartyA.WeekendShare)),
		field("party_a_busiest_day", r.PartyA.BusiestDay),
		field("party_b_weekend_share", fmtFloat(r.PartyB.WeekendShare)),
		field("party_b_busiest_day", r.PartyB.BusiestDay),
	}
}

// WeekdayActivity splits activity into weekdays and weekends.
type WeekdayActivity struct{}

func (WeekdayActivity) ID() contracts.ClassifierID { return contracts.ClassifierWeekdayActivity }
func (WeekdayActivity) Name() string               { return "Weekday Activity" }

func (WeekdayActivity) Analyze(in Input) (contracts.MetricResult, error) {
	parts := byParty(in.Messages)
	res := &WeekdayActivityResult{
		PartyA: partyWeekdays(parts[contracts.PartyA]),
		PartyB: partyWeekdays(parts[contracts.PartyB]),
	}
	res.Comparison = compare(in, res.PartyA.WeekendShare, res.PartyB.WeekendShare, 0.1, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s is more active on weekends than %s", leader, other)
	})
	res.Summary = fmt.Sprintf("Weekend share: %s %.0f%%, %s %.0f%%",
		in.name(contracts.PartyA), res.PartyA.WeekendShare*100, in.name(contracts.PartyB), res.PartyB.WeekendShare*100)
	return res, nil
}

func partyWeekdays(msgs []contracts.CanonicalMessage) PartyWeekdays {
	pw := PartyWeekdays{Messages: len(msgs)}
	for _, m := range msgs {
		d := m.Timestamp.Weekday()
		pw.ByDay[d]++
		if d == time.Saturday || d == time.Sunday {
			pw.Weekend++
		} else {
			pw.Weekday++
		}
	}
	pw.WeekendShare = round(ratio(pw.Weekend, len(msgs)), 4)
	if len(msgs) > 0 {
		// Monday-first scan so ties go to the earliest day of the week.
		best := time.Monday
		for i := 0; i < 7; i++ {
			d := time.Weekday((int(time.Monday) + i) % 7)
			if pw.ByDay[d] > pw.ByDay[best] {
				best = d
			}
		}
		pw.BusiestDay = best.String()
	}
	return pw
}

const (
	// A message after this much silence starts a new conversation.
	initiationGap = 6 * time.Hour
	// An initiation is answered when the other party replies within this window.
	answerWindow = time.Hour
)

// PartyInitiations counts who restarts the conversation.
type PartyInitiations struct {
	Initiations int     `json:"initiations"`
	Share       float64 `json:"share"`
	Answered    int     `json:"answered"`
	AnswerRate  float64 `json:"answer_rate"`
}

// CallbackConsistencyResult describes who reaches out first after silence.
type CallbackConsistencyResult struct {
	Summary     string           `json:"summary"`
	Initiations int              `json:"initiations"`
	PartyA      PartyInitiations `json:"party_a"`
	PartyB      PartyInitiations `json:"party_b"`
	// "balanced", "leaning" or "lopsided".
	Balance    string               `json:"balance"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *CallbackConsistencyResult) MetricID() contracts.ClassifierID {
	return contracts.ClassifierCallbackConsistency
}
func (r *CallbackConsistencyResult) MetricSummary() string { return r.Summary }

func (r *CallbackConsistencyResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("initiations", fmtInt(r.Initiations)),
		field("party_a_share", fmtFloat(r.PartyA.Share)),
		field("party_a_answer_rate", fmtFloat(r.PartyA.AnswerRate)),
		field("party_b_share", fmtFloat(r.PartyB.Share)),
		field("party_b_answer_rate", fmtFloat(r.PartyB.AnswerRate)),
		field("balance", r.Balance),
	}
}

// CallbackConsistency tracks conversation initiations.
type CallbackConsistency struct{}

func (CallbackConsistency) ID() contracts.ClassifierID {
	return contracts.ClassifierCallbackConsistency
}
func (CallbackConsistency) Name() string { return "Callback Consistency" }

func (CallbackConsistency) Analyze(in Input) (contracts.MetricResult, error) {
	stats := map[contracts.Party]*PartyInitiations{contracts.PartyA: {}, contracts.PartyB: {}}
	res := &CallbackConsistencyResult{}

	for i, m := range in.Messages {
		if i > 0 && m.Timestamp.Sub(in.Messages[i-1].Timestamp) < initiationGap {
			continue
		}
		res.Initiations++
		s := stats[m.Party]
		s.Initiations++
		if answered(in.Messages, i) {
			s.Answered++
		}
	}

	for _, s := range stats {
		s.Share = round(ratio(s.Initiations, res.Initiations), 4)
		s.AnswerRate = round(ratio(s.Answered, s.Initiations), 4)
	}
	res.PartyA, res.PartyB = *stats[contracts.PartyA], *stats[contracts.PartyB]
	res.Balance = initiationBalance(res.PartyA.Share, res.PartyB.Share, res.Initiations)
	res.Comparison = compare(in, res.PartyA.Share, res.PartyB.Share, 0.1, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s reaches out first more often than %s", leader, other)
	})
	res.Summary = fmt.Sprintf("%d conversation starts: %s %.0f%%, %s %.0f%% (%s)",
		res.Initiations, in.name(contracts.PartyA), res.PartyA.Share*100, in.name(contracts.PartyB), res.PartyB.Share*100, res.Balance)
	return res, nil
}

// answered reports whether the other party replied within the answer window.
func answered(msgs []contracts.CanonicalMessage, idx int) bool {
	start := msgs[idx]
	for _, m := range msgs[idx+1:] {
		if m.Timestamp.Sub(start.Timestamp) > answerWindow {
			return false
		}
		if m.Party != start.Party {
			return true
		}
	}
	return false
}

func initiationBalance(a, b float64, total int) string {
	if total < 2 {
		return contracts.Balanced
	}
	hi := a
	if b > hi {
		hi = b
	}
	switch {
	case hi >= 0.7:
		return "lopsided"
	case hi >= 0.6:
		return "leaning"
	}
	return contracts.Balanced
}

// StreakTimingResult measures daily continuity.
type StreakTimingResult struct {
	Summary string `json:"summary"`
	// Calendar days on which both parties sent at least one message.
	SharedDays    int `json:"shared_days"`
	SpanDays      int `json:"span_days"`
	LongestStreak int `json:"longest_streak"`
	// Streak ending on the last day of the conversation; 0 if that day was not shared.
	CurrentStreak  int                  `json:"current_streak"`
	ActiveDayRatio float64              `json:"active_day_ratio"`
	PartyADays     int                  `json:"party_a_days"`
	PartyBDays     int                  `json:"party_b_days"`
	Comparison     contracts.Comparison `json:"comparison"`
}

func (r *StreakTimingResult) MetricID() contracts.ClassifierID {
	return contracts.ClassifierStreakTiming
}
func (r *StreakTimingResult) MetricSummary() string { return r.Summary }

func (r *StreakTimingResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("shared_days", fmtInt(r.SharedDays)),
		field("span_days", fmtInt(r.SpanDays)),
		field("longest_streak", fmtInt(r.LongestStreak)),
		field("current_streak", fmtInt(r.CurrentStreak)),
		field("active_day_ratio", fmtFloat(r.ActiveDayRatio)),
	}
}

// StreakTiming counts consecutive days on which both parties talked.
type StreakTiming struct{}

func (StreakTiming) ID() contracts.ClassifierID { return contracts.ClassifierStreakTiming }
func (StreakTiming) Name() string               { return "Streak Timing" }

func (StreakTiming) Analyze(in Input) (contracts.MetricResult, error) {
	res := &StreakTimingResult{}
	if len(in.Messages) == 0 {
		res.Summary = "No messages"
		res.Comparison = contracts.Comparison{Leader: contracts.Balanced}
		return res, nil
	}

	days := map[contracts.Party]map[time.Time]bool{
		contracts.PartyA: {},
		contracts.PartyB: {},
	}
	for _, m := range in.Messages {
		days[m.Party][dayOf(m.Timestamp)] = true
	}
	res.PartyADays = len(days[contracts.PartyA])
	res.PartyBDays = len(days[contracts.PartyB])

	first := dayOf(in.Messages[0].Timestamp)
	last := dayOf(in.Messages[len(in.Messages)-1].Timestamp)
	run := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		res.SpanDays++
		if days[contracts.PartyA][d] && days[contracts.PartyB][d] {
			res.SharedDays++
			run++
			if run > res.LongestStreak {
				res.LongestStreak = run
			}
		} else {
			run = 0
		}
	}
	res.CurrentStreak = run
	res.ActiveDayRatio = round(ratio(res.SharedDays, res.SpanDays), 4)

	minGap := 0.1 * float64(res.SpanDays)
	res.Comparison = compare(in, float64(res.PartyADays), float64(res.PartyBDays), minGap, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s shows up on %.0f more days than %s", leader, gap, other)
	})
	res.Summary = fmt.Sprintf("Talked together on %d of %d days; longest streak %d days, current %d",
		res.SharedDays, res.SpanDays, res.LongestStreak, res.CurrentStreak)
	return res, nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
