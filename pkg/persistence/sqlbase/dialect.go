package sqlbase

import "database/sql"

// Dialect carries what differs between SQL engines sharing the repositories
// of this package.
type Dialect struct {
	Name       string
	Migrations map[int]string

	// LockClause is appended to the owner lookup that opens a graph
	// replacement, serializing concurrent replacements of one workflow.
	LockClause string

	// SnapshotTxOptions opens the transaction of a whole-graph read. nil
	// uses the driver default.
	SnapshotTxOptions *sql.TxOptions

	// LikeOperator performs a case-insensitive pattern match.
	LikeOperator string

	// IsUniqueViolation reports whether a driver error was raised by a
	// primary key or unique constraint.
	IsUniqueViolation func(err error) bool
}

func (d Dialect) uniqueViolation(err error) bool {
	return d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}
