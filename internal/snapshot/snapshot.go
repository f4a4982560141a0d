// Package snapshot implements a point-in-time capture of every local
// branch tip (C9) and the numbered on-disk stack of such captures used
// as an undo mechanism ahead of any rewrite.
package snapshot

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"sort"

	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
)

// BranchEntry is one captured branch tip.
type BranchEntry struct {
	Name     string            `json:"name"`
	ID       objid.Oid         `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Snapshot is every local branch tip at a point in time.
type Snapshot struct {
	Branches []BranchEntry     `json:"branches"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FromRepo captures every local branch currently in repo, sorted by
// (name, id) so two snapshots of the same state compare equal.
func FromRepo(ctx context.Context, repo gitrepo.Repo) (Snapshot, error) {
	branches, err := repo.LocalBranches(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	entries := make([]BranchEntry, 0, len(branches))
	for _, b := range branches {
		meta := map[string]string{}
		if c, ok, err := repo.FindCommit(ctx, b.ID); err == nil && ok {
			meta["summary"] = c.Summary
		}
		entries = append(entries, BranchEntry{Name: b.Name, ID: b.ID, Metadata: meta})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID.Less(entries[j].ID)
	})

	return Snapshot{Branches: entries}, nil
}

// Apply restores every captured branch in repo, creating or
// overwriting each ref to point at its captured id.
func (s Snapshot) Apply(ctx context.Context, repo gitrepo.Repo) error {
	for _, b := range s.Branches {
		if err := repo.Branch(ctx, b.Name, b.ID); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether s and other captured the same branch tips and
// metadata, at both the snapshot and per-branch level, so a push of
// otherwise-identical branch tips with a different message (or other
// metadata) is never mistaken for a duplicate.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Branches) != len(other.Branches) {
		return false
	}
	if !maps.Equal(s.Metadata, other.Metadata) {
		return false
	}
	for i, b := range s.Branches {
		o := other.Branches[i]
		if b.Name != o.Name || b.ID != o.ID {
			return false
		}
		if !maps.Equal(b.Metadata, o.Metadata) {
			return false
		}
	}
	return true
}

// Load reads a snapshot from a JSON file written by Save.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Save writes s as indented JSON to path.
func (s Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
