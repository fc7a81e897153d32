package enums

import "fmt"

// StageStatus describes the lifecycle of a stage instance.
type StageStatus string

const (
	StageStatusNotStarted StageStatus = "not_started"
	StageStatusStarted    StageStatus = "started"
	StageStatusCompleted  StageStatus = "completed"
)

var validStageStatuses = []StageStatus{
	StageStatusNotStarted,
	StageStatusStarted,
	StageStatusCompleted,
}

// IsValid reports whether the value matches the canonical stage status enum.
func (s StageStatus) IsValid() bool {
	for _, candidate := range validStageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStageStatus converts the raw string to StageStatus.
func ParseStageStatus(value string) (StageStatus, error) {
	for _, candidate := range validStageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stage status %q", value)
}
