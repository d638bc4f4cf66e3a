package floorplan

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound         = errors.New("table not found")
	ErrTableHidden           = errors.New("table is hidden inside a merge")
	ErrTransitionAnimating   = errors.New("a merge transition is animating")
	ErrMergePending          = errors.New("a merge proposal is awaiting confirmation")
	ErrNoPendingMerge        = errors.New("no merge proposal is pending")
	ErrNotMerged             = errors.New("table is not a merge parent")
	ErrNoSnapshot            = errors.New("no drag snapshot for table")
	ErrInvalidStatus         = errors.New("invalid table status")
	ErrInvalidMergeCandidate = errors.New("merge candidate group needs at least two tables")
	ErrNestedMerge           = errors.New("table cannot be both merge parent and child")

	// ErrCapacityMismatch is returned by seating collaborators when a table
	// has too few seats. The engine never produces it, it only passes it on.
	ErrCapacityMismatch = errors.New("table capacity is insufficient")
)

// AdjacencyQueryError reports malformed geometry handed to the spatial index.
type AdjacencyQueryError struct {
	TableID uint
	Reason  string
}

func (e *AdjacencyQueryError) Error() string {
	return fmt.Sprintf("adjacency query for table %d: %s", e.TableID, e.Reason)
}

// Table service operations named in PersistenceFailure.Op.
const (
	OpUpdatePosition = "update position"
	OpUpdateStatus   = "update status"
	OpMergeTables    = "merge tables"
	OpUnmergeTables  = "unmerge tables"
)

// PersistenceFailure wraps an error returned by the remote table service.
type PersistenceFailure struct {
	Op       string
	TableIDs []uint
	Err      error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Op, e.TableIDs, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}
