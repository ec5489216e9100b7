package audit

import (
	"fmt"

	"github.com/authgate/authgate/internal/model"
)

const (
	maxMetaLength     = 500
	maxRequestIDLen   = 128
	visitorHashLength = 16
)

// ValidateEvent validates event fields before they reach the stream.
func ValidateEvent(e Event) error {
	switch e.Type {
	case EventSignup, EventLogin:
	case "":
		return fmt.Errorf("event type is required")
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	if len(e.VisitorHash) != visitorHashLength || !isHex(e.VisitorHash) {
		return fmt.Errorf("visitor_hash must be %d hex chars", visitorHashLength)
	}
	if len(e.Username) > model.MaxUsernameLength {
		return fmt.Errorf("username too long")
	}
	if len(e.UserAgent) > maxMetaLength {
		return fmt.Errorf("user_agent too long")
	}
	if len(e.RequestID) > maxRequestIDLen {
		return fmt.Errorf("request_id too long")
	}
	if e.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
