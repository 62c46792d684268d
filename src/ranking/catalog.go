package ranking

import "rapport-agent/src/contracts"

// catalog is the fixed set of recommendations, keyed by the pattern that
// triggers them.
var catalog = map[Pattern]contracts.Recommendation{
	PatternToxicity: {
		Priority: contracts.ImportanceHigh,
		Action:   "Pause heated exchanges before they escalate",
		Details:  "Agree on a signal for taking a break when a conversation turns hostile, and return to the topic once both sides have cooled down.",
	},
	PatternHealthDeclining: {
		Priority: contracts.ImportanceHigh,
		Action:   "Talk about what changed recently",
		Details:  "The tone of the conversation got worse over time. A direct, low-pressure check-in about how each of you is feeling can surface the cause early.",
	},
	PatternResponseGap: {
		Priority: contracts.ImportanceMedium,
		Action:   "Align expectations about reply times",
		Details:  "One of you answers much faster than the other. Say what response times feel comfortable so silence is not read as disinterest.",
	},
	PatternDoubleTexting: {
		Priority: contracts.ImportanceMedium,
		Action:   "Give replies room to arrive",
		Details:  "Several messages in a row without an answer can feel like pressure. Wait for a reply before following up.",
	},
	PatternApologyImbalance: {
		Priority: contracts.ImportanceMedium,
		Action:   "Share responsibility for repairing conflict",
		Details:  "Apologies mostly come from one side. Acknowledging your own part after a disagreement keeps repair from falling on one person.",
	},
	PatternEngagementGap: {
		Priority: contracts.ImportanceMedium,
		Action:   "Balance the effort in the conversation",
		Details:  "One of you asks more questions and writes more. Matching curiosity with follow-up questions helps both feel heard.",
	},
	PatternCallbackLopsided: {
		Priority: contracts.ImportanceMedium,
		Action:   "Take turns reaching out first",
		Details:  "Most conversations are started by the same person. Starting one yourself now and then shows the interest is mutual.",
	},
	PatternSentimentGap: {
		Priority: contracts.ImportanceLow,
		Action:   "Notice each other's mood",
		Details:  "One of you writes noticeably more positively. Asking how the other is doing can reveal stress that text does not show.",
	},
	PatternHealthExcellent: {
		Priority: contracts.ImportanceLow,
		Action:   "Keep doing what works",
		Details:  "Your communication is warm, balanced and responsive. Keep the habits that got you here.",
	},
	PatternLowConfidence: {
		Priority: contracts.ImportanceLow,
		Action:   "Analyze a longer stretch of conversation",
		Details:  "Some metrics could not be computed. A longer or more complete export gives a more reliable picture.",
	},
	PatternClassifierMissing: {
		Priority: contracts.ImportanceLow,
		Action:   "Analyze a longer stretch of conversation",
		Details:  "Some metrics could not be computed. A longer or more complete export gives a more reliable picture.",
	},
}
