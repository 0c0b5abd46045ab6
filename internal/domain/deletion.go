package domain

import (
	"fmt"
	"time"
)

// Collections owned by a school. Every document in them is keyed by the
// school's code and goes away with it.
const (
	CollectionUsers         = "users"
	CollectionStudents      = "students"
	CollectionTeachers      = "teachers"
	CollectionClasses       = "classes"
	CollectionParents       = "parents"
	CollectionAnnouncements = "announcements"

	// CollectionGlobalUsers is the cross-school user registry. Deleting a
	// school's users also removes their registry entries.
	CollectionGlobalUsers = "global_users"
)

// OwnedCollections are cleared by the cascading delete, in this order.
var OwnedCollections = []string{
	CollectionUsers,
	CollectionStudents,
	CollectionTeachers,
	CollectionClasses,
	CollectionParents,
	CollectionAnnouncements,
}

const (
	// MaxBatchOps is the store's hard ceiling per atomic commit.
	MaxBatchOps = 500
	// DeleteBatchSize is the number of delete operations after which a batch
	// is sealed and a new one started.
	DeleteBatchSize = 450
)

// DocRef addresses one document. TenantID is empty for registry records.
type DocRef struct {
	TenantID   string
	Collection string
	ID         string
}

// Batch is a set of deletes committed atomically.
type Batch struct {
	Collection string
	Ops        []DocRef
}

// PlanDeletion splits every owned document of a school into batches of at most
// DeleteBatchSize operations. Batches never span collections; a trailing
// partial batch is flushed per collection. A document of the users collection
// costs two operations because its registry record is deleted alongside it,
// and both land in the same batch.
func PlanDeletion(tenantID string, docs map[string][]string) []Batch {
	var batches []Batch
	for _, coll := range OwnedCollections {
		ids := docs[coll]
		if len(ids) == 0 {
			continue
		}
		cur := Batch{Collection: coll}
		for _, id := range ids {
			ops := []DocRef{{TenantID: tenantID, Collection: coll, ID: id}}
			if coll == CollectionUsers {
				ops = append(ops, DocRef{Collection: CollectionGlobalUsers, ID: id})
			}
			if len(cur.Ops)+len(ops) > DeleteBatchSize {
				batches = append(batches, cur)
				cur = Batch{Collection: coll}
			}
			cur.Ops = append(cur.Ops, ops...)
		}
		batches = append(batches, cur)
	}
	return batches
}

// ConfirmationPhrase is the text an operator must type to delete a school.
func ConfirmationPhrase(tenantID string) string {
	return "DELETE " + tenantID
}

// DeletionState is a step of the cascading delete workflow.
type DeletionState string

const (
	DeletionConfirmWarning DeletionState = "confirm_warning"
	DeletionConfirmReauth  DeletionState = "confirm_reauth"
	DeletionConfirmTyped   DeletionState = "confirm_typed"
	DeletionExecuting      DeletionState = "executing"
	DeletionDone           DeletionState = "done"
	DeletionFailed         DeletionState = "failed"
)

// IsTerminal reports whether the workflow can make no further progress.
func (s DeletionState) IsTerminal() bool {
	return s == DeletionDone || s == DeletionFailed
}

// DeletionEvent drives the workflow from one step to the next.
type DeletionEvent string

const (
	DeletionAcknowledge     DeletionEvent = "acknowledge"
	DeletionReauthenticated DeletionEvent = "reauthenticated"
	DeletionConfirmed       DeletionEvent = "confirmed"
	DeletionSucceeded       DeletionEvent = "succeeded"
	DeletionFailedEvent     DeletionEvent = "failed"
)

// DeletionTransition describes an allowed state change.
type DeletionTransition struct {
	Event DeletionEvent
	Src   DeletionState
	Dst   DeletionState
}

// DeletionTransitions is the complete workflow. Steps cannot be skipped and
// terminal states have no way out.
var DeletionTransitions = []DeletionTransition{
	{Event: DeletionAcknowledge, Src: DeletionConfirmWarning, Dst: DeletionConfirmReauth},
	{Event: DeletionReauthenticated, Src: DeletionConfirmReauth, Dst: DeletionConfirmTyped},
	{Event: DeletionConfirmed, Src: DeletionConfirmTyped, Dst: DeletionExecuting},
	{Event: DeletionSucceeded, Src: DeletionExecuting, Dst: DeletionDone},
	{Event: DeletionFailedEvent, Src: DeletionExecuting, Dst: DeletionFailed},
}

// DeletionWorkflow tracks one operator's attempt to delete one school.
type DeletionWorkflow struct {
	ID               string
	TenantID         string
	TenantName       string
	OperatorUID      string
	State            DeletionState
	TotalBatches     int
	CommittedBatches int
	Error            string
	StartedAt        time.Time
	UpdatedAt        time.Time
}

func (w DeletionWorkflow) String() string {
	return fmt.Sprintf("deletion %s of %s [%s]", w.ID, w.TenantID, w.State)
}
