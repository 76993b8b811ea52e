package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      string
	URL         string
	TraceID     string
	ConnectedAt time.Time
}
