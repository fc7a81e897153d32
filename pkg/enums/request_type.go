package enums

import "fmt"

// RequestType describes what a change request proposes to do to a defect row.
type RequestType string

const (
	RequestTypeAdd    RequestType = "add"
	RequestTypeEdit   RequestType = "edit"
	RequestTypeDelete RequestType = "delete"
)

var validRequestTypes = []RequestType{
	RequestTypeAdd,
	RequestTypeEdit,
	RequestTypeDelete,
}

// IsValid reports whether the value matches the canonical request type enum.
func (r RequestType) IsValid() bool {
	for _, candidate := range validRequestTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRequestType converts the raw string to RequestType.
func ParseRequestType(value string) (RequestType, error) {
	for _, candidate := range validRequestTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request type %q", value)
}
