package user

import (
	"time"
)

const RoleAdmin = "admin"

// User is an account of the bookkeeping application. The reminder service only needs it
// as the owner of the notification settings and as the admin recipient.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}
