// Package report renders run reports and store status for the terminal.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/pkg/types"
)

// DryRunNotice is printed after every dry-run report
const DryRunNotice = "Dry run: no embeddings were generated and no changes were written."

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
}

// newStyles binds styles to w so color is only emitted on terminals
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		label: r.NewStyle().Foreground(lipgloss.Color("245")),
		value: r.NewStyle().Foreground(lipgloss.Color("252")),
		err:   r.NewStyle().Foreground(lipgloss.Color("196")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (s styles) row(label string, value any) string {
	return "  " + s.label.Render(fmt.Sprintf("%-10s", label)) + s.value.Render(fmt.Sprint(value))
}

// Render writes a human-readable summary of r to w
func Render(w io.Writer, r *types.RunReport) error {
	s := newStyles(w)

	title := "Index run " + r.RunID
	if r.DryRun {
		title += " (dry run)"
	}

	indexed, deleted := "indexed", "deleted"
	if r.DryRun {
		indexed, deleted = "would index", "would delete"
	}

	lines := []string{
		s.title.Render(title),
		s.row("Files", fmt.Sprintf("discovered %d  processed %d  removed %d  failed %d",
			r.FilesDiscovered, r.FilesProcessed, r.FilesRemoved, r.FilesFailed)),
		s.row("Chunks", fmt.Sprintf("%s %d  skipped %d  %s %d",
			indexed, r.ChunksIndexed, r.ChunksSkipped, deleted, r.ChunksDeleted)),
		s.row("Tokens", fmt.Sprintf("used %d  projected %d", r.TokensUsed, r.ProjectedTokens)),
		s.row("Cost", fmt.Sprintf("$%.6f", r.EstimatedCost)),
		s.row("Duration", r.Duration.Round(time.Millisecond)),
	}

	if len(r.Errors) > 0 {
		lines = append(lines, s.err.Render(fmt.Sprintf("Errors (%d)", len(r.Errors))))
		for _, e := range r.Errors {
			lines = append(lines, "  "+s.err.Render(fmt.Sprintf("%s [%s] %v", e.Path, e.Stage, e.Err)))
		}
	}

	if r.DryRun {
		lines = append(lines, s.warn.Render(DryRunNotice))
	}

	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// RenderStatus writes a summary of the store contents to w
func RenderStatus(w io.Writer, st *storage.Status) error {
	s := newStyles(w)

	lastUpdated := s.dim.Render("never")
	if st.LastUpdated != nil {
		lastUpdated = st.LastUpdated.Local().Format(time.RFC3339)
	}
	vector := st.VectorExtension
	if vector == "" {
		vector = s.dim.Render("none")
	}

	lines := []string{
		s.title.Render("Index status"),
		s.row("Backend", st.Backend),
		s.row("Schema", st.SchemaVersion),
		s.row("Vector", vector),
		s.row("Files", st.Files),
		s.row("Chunks", st.Chunks),
		s.row("Tokens", st.Tokens),
		s.row("Updated", lastUpdated),
	}
	for _, k := range slices.Sorted(maps.Keys(st.Meta)) {
		lines = append(lines, s.row(k, st.Meta[k]))
	}

	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}
