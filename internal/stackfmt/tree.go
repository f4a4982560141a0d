// Package stackfmt renders a commit graph as the tree view `stack
// --format=full` prints: one line per branch tip, indented by stack
// depth, colorized with lipgloss when the output is a terminal.
// Deliberately thin — palette/color selection itself is out of scope,
// matching spec.md §1.
package stackfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
)

var (
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	branchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	protectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

// IsColorEnabled reports whether w is a terminal that should receive
// ANSI styling, mirroring the teacher's own isatty gate.
func IsColorEnabled(w interface{ Fd() uintptr }) bool {
	return isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
}

// Renderer prints a graph's branches as an indented tree.
type Renderer struct {
	Out     io.Writer
	Color   bool
	Stacked bool

	// Allow, if non-nil, restricts printed lines to ids it contains;
	// the walk still traverses every child so descendants past a
	// skipped node still render. A nil Allow prints every branch.
	Allow map[objid.Oid]bool
}

// New returns a Renderer writing to out; color turns on ANSI styling
// and stacked indents each level of a stack one step deeper.
func New(out io.Writer, color, stacked bool) *Renderer {
	return &Renderer{Out: out, Color: color, Stacked: stacked}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.Color {
		return text
	}
	return s.Render(text)
}

// Render walks g from root to every branch tip along primary child
// edges, printing one line per branch on each commit that carries
// branches.
func (r *Renderer) Render(g *graph.Graph, head objid.Oid) {
	r.renderNode(g, g.RootID(), head, 0)
}

func (r *Renderer) renderNode(g *graph.Graph, id, head objid.Oid, depth int) {
	if r.Allow == nil || r.Allow[id] {
		if bucket, ok := g.Branches.Get(id); ok {
			for _, b := range bucket {
				r.renderLine(b, id == head, depth)
			}
		}
	}

	children := g.PrimaryChildrenOf(id)
	for _, child := range children {
		nextDepth := depth
		if r.Stacked {
			nextDepth++
		}
		r.renderNode(g, child, head, nextDepth)
	}
}

func (r *Renderer) renderLine(b branchset.GraphBranch, isHead bool, depth int) {
	indent := ""
	if depth > 0 {
		indent = strings.Repeat("  ", depth-1) + "└─ "
	}

	marker := "◯"
	if isHead {
		marker = "◉"
	}

	name := b.Name
	switch {
	case isHead:
		name = r.style(currentStyle, name+" (current)")
	case b.Kind == branchset.Protected:
		name = r.style(protectStyle, name)
	case b.Kind == branchset.Mixed:
		name = r.style(warnStyle, name)
	default:
		name = r.style(branchStyle, name)
	}

	fmt.Fprintf(r.Out, "%s%s %s\n", indent, marker, name)
}

// Dim renders text in the dim/secondary color when color is enabled.
func (r *Renderer) Dim(text string) string {
	return r.style(dimStyle, text)
}
