package enums

import "fmt"

// RemoteStatus is the backend's answer to a status-by-key query.
type RemoteStatus string

const (
	RemoteStatusSuccess    RemoteStatus = "SUCCESS"
	RemoteStatusNotFound   RemoteStatus = "NOT_FOUND"
	RemoteStatusPending    RemoteStatus = "PENDING"
	RemoteStatusProcessing RemoteStatus = "PROCESSING"
)

var validRemoteStatuses = []RemoteStatus{
	RemoteStatusSuccess,
	RemoteStatusNotFound,
	RemoteStatusPending,
	RemoteStatusProcessing,
}

// String implements fmt.Stringer.
func (s RemoteStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RemoteStatus.
func (s RemoteStatus) IsValid() bool {
	for _, candidate := range validRemoteStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRemoteStatus converts raw input into a RemoteStatus.
func ParseRemoteStatus(value string) (RemoteStatus, error) {
	for _, candidate := range validRemoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid remote status %q", value)
}
