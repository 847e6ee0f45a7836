package eventlog

import (
	"encoding/json"
	"fmt"

	"github.com/joshmcarthur/linkding-companion/linkding"
)

// Action identifies an enrichment action. The set is closed: a new action
// means a new constant, payload type, and ParseExtra arm.
type Action string

const (
	ActionBookmarkCreated      Action = "bookmark_created"
	ActionTagged               Action = "tagged"
	ActionReadabilityExtracted Action = "readability_extracted"
	ActionSearched             Action = "searched"
	ActionSummarized           Action = "summarized"
)

// Actions lists every known action.
func Actions() []Action {
	return []Action{
		ActionBookmarkCreated,
		ActionTagged,
		ActionReadabilityExtracted,
		ActionSearched,
		ActionSummarized,
	}
}

// Payload is the action-specific extra carried by an event. Each action has
// exactly one payload shape; the association lives in the type, not in
// caller convention.
type Payload interface {
	EventAction() Action
}

// CreatedExtra snapshots the bookmark as it looked at sweep time.
type CreatedExtra struct {
	Bookmark linkding.Bookmark `json:"bookmark"`
}

func (CreatedExtra) EventAction() Action { return ActionBookmarkCreated }

// TaggedExtra records the tags added by autotagging.
type TaggedExtra struct {
	Tags []string `json:"tags"`
}

func (TaggedExtra) EventAction() Action { return ActionTagged }

// ReadabilityExtra records a successful content extraction.
type ReadabilityExtra struct {
	URL           string `json:"url"`
	ContentLength int    `json:"content_length"`
}

func (ReadabilityExtra) EventAction() Action { return ActionReadabilityExtracted }

// SearchedExtra records a resolved saved search.
type SearchedExtra struct {
	Query       string `json:"query"`
	OriginalURL string `json:"original_url"`
}

func (SearchedExtra) EventAction() Action { return ActionSearched }

// SummarizedExtra records a generated summary.
type SummarizedExtra struct {
	URL                 string `json:"url"`
	OriginalDescription string `json:"original_description"`
	SummaryLength       int    `json:"summary_length"`
}

func (SummarizedExtra) EventAction() Action { return ActionSummarized }

// ParseExtra decodes a stored extra column back into its typed payload.
func ParseExtra(action Action, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch action {
	case ActionBookmarkCreated:
		p = &CreatedExtra{}
	case ActionTagged:
		p = &TaggedExtra{}
	case ActionReadabilityExtracted:
		p = &ReadabilityExtra{}
	case ActionSearched:
		p = &SearchedExtra{}
	case ActionSummarized:
		p = &SummarizedExtra{}
	default:
		return nil, fmt.Errorf("eventlog: unknown action %q", action)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("eventlog: decode %s extra: %w", action, err)
	}
	return p, nil
}
