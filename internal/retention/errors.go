package retention

import "fmt"

// ValidationError reports a rejected parameter write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation on an unknown node id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %s not found", e.ID)
}

// AlreadyArchivedError reports a forget on a node that is already archived.
type AlreadyArchivedError struct {
	ID string
}

func (e *AlreadyArchivedError) Error() string {
	return fmt.Sprintf("node %s already archived", e.ID)
}

// NotArchivedError reports a recall on a node that is not in the archive.
type NotArchivedError struct {
	ID string
}

func (e *NotArchivedError) Error() string {
	return fmt.Sprintf("node %s is not archived", e.ID)
}

// PartialSignalError records an external input that was missing or unusable
// while scoring a node. It is recovered with a default and never returned
// from an analysis pass.
type PartialSignalError struct {
	NodeID string
	Signal string
	Detail string
}

func (e *PartialSignalError) Error() string {
	return fmt.Sprintf("node %s: %s signal %s, using default", e.NodeID, e.Signal, e.Detail)
}
