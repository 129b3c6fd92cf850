package request

import "time"

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	DefaultWindow    = 24 * time.Hour
	MaxWindow        = 30 * 24 * time.Hour
)

// ListRequest backs the admin listing endpoints.
type ListRequest struct {
	RawLimit int           `json:"limit" validate:"omitempty,min=1,max=500"`
	Window   time.Duration `json:"window"`
}

func (l ListRequest) Limit() int {
	if l.RawLimit < 1 {
		return DefaultListLimit
	}
	if l.RawLimit > MaxListLimit {
		return MaxListLimit
	}
	return l.RawLimit
}
