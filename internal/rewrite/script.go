// Package rewrite implements the rewrite script and script builder
// (C6, C7) and the transactional executor (C8): lowering a graph into
// an ordered list of batches, then applying those batches against a
// repository one at a time, isolating failures to the batch that
// produced them.
package rewrite

import "gitstack.dev/gitstack/internal/objid"

// CommandKind identifies one step of a Batch.
type CommandKind int

const (
	// CherryPick replays a commit onto the batch's current head.
	CherryPick CommandKind = iota
	// Reword replays ID onto the current head (when ID is set) and
	// gives the result Message as its commit message; with no ID it
	// rewords the current head itself.
	Reword
	// Fixup squashes a commit into the batch's current head.
	Fixup
	// CreateBranch stages a local branch to point at the current head.
	CreateBranch
	// DeleteBranch stages a local branch for removal.
	DeleteBranch
	// RegisterMark records the batch's current head under a mark id so
	// a later batch's OntoMark can resolve it.
	RegisterMark
)

func (k CommandKind) String() string {
	switch k {
	case CherryPick:
		return "CherryPick"
	case Reword:
		return "Reword"
	case Fixup:
		return "Fixup"
	case CreateBranch:
		return "CreateBranch"
	case DeleteBranch:
		return "DeleteBranch"
	case RegisterMark:
		return "RegisterMark"
	default:
		return "Unknown"
	}
}

// Command is one step within a Batch.
type Command struct {
	Kind CommandKind
	// ID is the original commit id for CherryPick/Reword/Fixup/RegisterMark.
	ID objid.Oid
	// Name is the branch name for CreateBranch/DeleteBranch.
	Name string
	// Message is the new commit message for Reword.
	Message string
}

// Batch is a contiguous run of commands applied against one HEAD: it
// starts by resolving OntoMark (through the executor's mark table, or
// used literally if no earlier batch registered it) and ends with any
// staged branch creations/deletions committed atomically.
type Batch struct {
	OntoMark objid.Oid
	Commands []Command
}

// Script is the full ordered list of batches the builder produced.
// Ordering already satisfies the toposort requirement: a batch never
// appears before the batch that registers the mark its OntoMark needs,
// because the builder only enqueues a dependent batch after finishing
// the batch that produces its mark.
type Script struct {
	Batches []Batch
}

// IsEmpty reports whether the script has no batches to apply.
func (s *Script) IsEmpty() bool { return len(s.Batches) == 0 }
