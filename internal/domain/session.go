package domain

import (
	"time"

	"github.com/jjcims/jjcims/pkg/idx"
)

// Session is the process-wide authenticated state. There is exactly one
// slot per process; see service.SessionContext for the lifecycle.
type Session struct {
	ID              idx.ID
	User            string // display name at authentication time
	Level           AccessLevel
	AuthenticatedAt time.Time
}
