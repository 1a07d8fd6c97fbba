package rfq

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingFiles  Status = "pending_files"
	StatusGenerating    Status = "generating"
	StatusReady         Status = "ready"
	StatusSent          Status = "sent"
	StatusAwaitingQuote Status = "awaiting_quote"
	StatusQuoted        Status = "quoted"
	StatusAwarded       Status = "awarded"
	StatusCompleted     Status = "completed"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingFiles,
	StatusGenerating,
	StatusReady,
	StatusSent,
	StatusAwaitingQuote,
	StatusQuoted,
	StatusAwarded,
	StatusCompleted,
}

func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

func (s Status) String() string { return string(s) }

// IsReleaseStage reports whether the status is still owned by release
// preparation, i.e. derived from item and supplier state rather than set by
// an explicit user action.
func (s Status) IsReleaseStage() bool {
	switch s {
	case StatusDraft, StatusPendingFiles, StatusReady:
		return true
	default:
		return false
	}
}
