package license

import (
	"database/sql"
	"time"
)

// License is the read-only projection of a license purchase consumed by the reminder pass.
// Cost and currency fields live in the bookkeeping schema and are not loaded here.
type License struct {
	ID             int64
	ToolName       string
	VendorName     string
	ExpirationDate time.Time // calendar date, no time component
	Quantity       int
	ClientID       sql.NullInt64
	ClientName     sql.NullString
	ClientEmail    sql.NullString
	VendorEmail    sql.NullString
}
