package models

import "time"

// Answer is one collected answer record.
//
// A record is created during the collection phase with only SourceURL
// populated, then filled in exactly once per successful processing attempt.
// The pipeline never deletes records; a failed attempt leaves the row
// unchanged so a future run picks it up again.
type Answer struct {
	ID              int64      `json:"id"`
	SourceURL       string     `json:"source_url"`       // Answered-question URL, the unique collection key
	DetailURL       string     `json:"detail_url"`       // Bare question URL
	TitleText       string     `json:"title_text"`       // Question title
	BodyText        string     `json:"body_text"`        // Answer content as Markdown
	RevisionURL     string     `json:"revision_url"`     // Revision history link from the log page
	RawTimestamp    string     `json:"raw_timestamp"`    // Source-native timestamp string
	ParsedTimestamp *time.Time `json:"parsed_timestamp"` // RawTimestamp in the fixed source zone
}

// IsComplete reports whether both critical fields are populated.
// Records failing this are the pending set, which doubles as the retry queue.
func (a *Answer) IsComplete() bool {
	return a.TitleText != "" && a.BodyText != ""
}

// AnswerFields carries the values a processing attempt extracted for one record.
type AnswerFields struct {
	DetailURL       string
	TitleText       string
	BodyText        string
	RevisionURL     string
	RawTimestamp    string
	ParsedTimestamp *time.Time
}
