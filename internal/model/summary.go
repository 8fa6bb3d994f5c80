package model

import "time"

// AnalysisSummary is the audit record of the latest analysis run for
// an account. One row per account, overwritten each run.
type AnalysisSummary struct {
	Account              AccountID `json:"account"`
	EmailsFetched        int       `json:"emails_fetched"`
	EmailsAnalyzed       int       `json:"emails_analyzed"`
	AlreadyTracked       int       `json:"already_tracked"`
	Dismissed            int       `json:"dismissed"`
	SuggestionsGenerated int       `json:"suggestions_generated"`
	RulesGenerated       int       `json:"rules_generated"`
	AttentionItems       int       `json:"attention_items"`
	HaikuAnalyzed        int       `json:"haiku_analyzed"`
	HaikuRemaining       int       `json:"haiku_remaining"`
	HaikuFailures        int       `json:"haiku_failures"`
	PersistFailures      int       `json:"persist_failures"`
	RanAt                time.Time `json:"ran_at"`
}
