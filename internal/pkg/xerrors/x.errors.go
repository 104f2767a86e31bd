package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

type RepoError struct {
	Entity string
	Code   string
	Msg    string
	Ref    string
}

func (e *RepoError) Error() string {
	return e.Entity + ": " + e.Msg
}

// ParsePGErrorCode extracts the Postgres error code, e.g. 23505 for unique_violation.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

const PGUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint violation.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == PGUniqueViolation
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Structure tree
var (
	ErrModuleNotFound  = errors.New("module not found")
	ErrFeatureNotFound = errors.New("feature not found")
	ErrParentNotFound  = errors.New("parent module not found")
	ErrVersionNotFound = errors.New("version not found")

	ErrCyclicParent   = errors.New("module cannot be moved under its own descendant")
	ErrSelfParent     = errors.New("module cannot be its own parent")
	ErrCrossProject   = errors.New("parent module belongs to a different project")
	ErrNoNeighbor     = errors.New("no sibling in the requested direction")
	ErrInvalidMoveDir = errors.New("invalid move direction")
)

// Lifecycle
var (
	ErrHasActiveChildren = errors.New("node has active children; use cascade")
	ErrSubtreePublished  = errors.New("subtree contains published nodes; use force")
	ErrNotDeleted        = errors.New("node is not deleted")
	ErrParentDeleted     = errors.New("parent is deleted; restore the parent first")
)

// Versioning
var (
	// ErrDuplicateVersion is returned by the repository when a version insert
	// trips one of the (node, version_number) / (node, content_hash) unique
	// constraints. The caller re-reads by hash instead of surfacing it.
	ErrDuplicateVersion = errors.New("duplicate version")

	// ErrPinIntegrity means a published pin references a version row that does
	// not exist. Fatal, never retried.
	ErrPinIntegrity = errors.New("pinned version is missing")

	ErrNotPublished = errors.New("module has no published version")
)
