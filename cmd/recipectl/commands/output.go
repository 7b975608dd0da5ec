package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"recipebox/internal/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

const timeLayout = "Jan 2, 2006 15:04"

// printer writes command output as styled text or JSON.
type printer struct {
	w    io.Writer
	json bool
}

func (p printer) success(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, successStyle.Render("✓ ")+fmt.Sprintf(format, args...))
}

func (p printer) warning(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, warningStyle.Render("⚠ ")+fmt.Sprintf(format, args...))
}

func (p printer) section(title string) {
	_, _ = fmt.Fprintln(p.w, primaryStyle.Render(title))
	_, _ = fmt.Fprintln(p.w, mutedStyle.Render(strings.Repeat("─", lipgloss.Width(title))))
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) recipes(list []models.Recipe) error {
	if p.json {
		return p.encode(list)
	}
	if len(list) == 0 {
		p.warning("No recipes found")
		return nil
	}
	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tCREATED")
	for _, r := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Title, r.CreatedAt.Local().Format(timeLayout))
	}
	return w.Flush()
}

func (p printer) recipe(r *models.RecipeWithAuthor) error {
	if p.json {
		return p.encode(r)
	}
	p.section(r.Title)
	_, _ = fmt.Fprintf(p.w, "%s %s\n", mutedStyle.Render("by"), r.AuthorEmail)
	if r.Description != nil {
		_, _ = fmt.Fprintf(p.w, "\n%s\n", *r.Description)
	}
	_, _ = fmt.Fprintf(p.w, "\n%s\n%s\n", primaryStyle.Render("Ingredients"), r.Ingredients)
	_, _ = fmt.Fprintf(p.w, "\n%s\n%s\n", primaryStyle.Render("Instructions"), r.Instructions)
	if r.ImageURL != nil {
		_, _ = fmt.Fprintf(p.w, "\n%s %s\n", mutedStyle.Render("Image:"), *r.ImageURL)
	}
	return nil
}

func (p printer) comments(list []models.CommentWithUser) error {
	if p.json {
		return p.encode(list)
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(p.w, mutedStyle.Render("No comments yet"))
		return nil
	}
	for _, c := range list {
		p.comment(c)
	}
	return nil
}

func (p printer) comment(c models.CommentWithUser) {
	_, _ = fmt.Fprintf(p.w, "%s %s %s\n  %s\n",
		mutedStyle.Render(c.CreatedAt.Local().Format(timeLayout)),
		primaryStyle.Render(c.AuthorName()),
		mutedStyle.Render("("+c.ID+")"),
		c.Text,
	)
}

func formatExpiry(t time.Time) string {
	return t.Local().Format(timeLayout)
}
