package rewrite

import (
	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
)

type pendingBatch struct {
	ontoMark objid.Oid
	nodeID   objid.Oid
}

// Build lowers g into a Script. rewordTargets maps a commit id to a
// replacement message for the orchestration verbs (such as "reword")
// that need a Reword command emitted in place of a CherryPick for one
// specific commit.
func Build(g *graph.Graph, rewordTargets map[objid.Oid]string) *Script {
	script := &Script{}

	var pending []pendingBatch
	protectedQueue := []objid.Oid{}
	if g.Action(g.RootID()) == graph.Protected {
		protectedQueue = append(protectedQueue, g.RootID())
	}
	for len(protectedQueue) > 0 {
		cur := protectedQueue[0]
		protectedQueue = protectedQueue[1:]

		if bucket, _ := g.Branches.Get(cur); len(bucket) > 0 {
			b := Batch{OntoMark: cur}
			for _, br := range bucket {
				b.Commands = append(b.Commands, Command{Kind: CreateBranch, Name: br.Name})
			}
			script.Batches = append(script.Batches, b)
		}

		for _, child := range g.ChildrenOf(cur) {
			if g.Action(child) == graph.Protected {
				protectedQueue = append(protectedQueue, child)
				continue
			}
			pending = append(pending, pendingBatch{ontoMark: cur, nodeID: child})
		}
	}

	for len(pending) > 0 {
		p := pending[0]
		pending = pending[1:]
		batch := Batch{OntoMark: p.ontoMark}
		more := appendChain(g, p.nodeID, &batch, rewordTargets)
		if len(batch.Commands) > 0 {
			script.Batches = append(script.Batches, batch)
		}
		pending = append(pending, more...)
	}

	return script
}

func appendChain(g *graph.Graph, nodeID objid.Oid, batch *Batch, rewordTargets map[objid.Oid]string) []pendingBatch {
	action := g.Action(nodeID)
	bucket, _ := g.Branches.Get(nodeID)

	switch action {
	case graph.Delete:
		for _, b := range bucket {
			batch.Commands = append(batch.Commands, Command{Kind: DeleteBranch, Name: b.Name})
		}
	case graph.Fixup:
		batch.Commands = append(batch.Commands, Command{Kind: Fixup, ID: nodeID})
		appendBranchCreates(batch, bucket)
	default:
		if message, ok := rewordTargets[nodeID]; ok {
			batch.Commands = append(batch.Commands, Command{Kind: Reword, ID: nodeID, Message: message})
		} else {
			batch.Commands = append(batch.Commands, Command{Kind: CherryPick, ID: nodeID})
		}
		appendBranchCreates(batch, bucket)
	}

	children := g.ChildrenOf(nodeID)
	if len(children) == 0 {
		return nil
	}

	hasBranches := action != graph.Delete && len(bucket) > 0
	if !hasBranches && len(children) == 1 {
		return appendChain(g, children[0], batch, rewordTargets)
	}

	batch.Commands = append(batch.Commands, Command{Kind: RegisterMark, ID: nodeID})
	pending := make([]pendingBatch, 0, len(children))
	for _, child := range children {
		pending = append(pending, pendingBatch{ontoMark: nodeID, nodeID: child})
	}
	return pending
}

func appendBranchCreates(batch *Batch, bucket []branchset.GraphBranch) {
	for _, b := range bucket {
		batch.Commands = append(batch.Commands, Command{Kind: CreateBranch, Name: b.Name})
	}
}
