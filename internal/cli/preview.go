package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"inkuinfo/internal/layout"
)

var (
	accent = lipgloss.Color("#EF4444")
	muted  = lipgloss.Color("#6B7280")

	bigStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(accent).
			Padding(0, 1).
			Width(60)

	mediumStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			Width(60)

	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(muted)
	smallStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func newPreviewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Poll the calendar once and draw the display layout in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runPreview(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := a.poller.Refresh(ctx); err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, renderPreview(layout.Build(a.store.Snapshot(), a.formatter)))
	return err
}

func renderPreview(l layout.Layout) string {
	if l.Big == nil {
		return dimStyle.Render("No upcoming events")
	}

	var blocks []string
	blocks = append(blocks, bigStyle.Render(card(*l.Big, true)))
	for _, it := range l.Medium {
		blocks = append(blocks, mediumStyle.Render(card(it, false)))
	}
	if len(l.Small) > 0 {
		lines := make([]string, 0, len(l.Small))
		for _, it := range l.Small {
			line := titleStyle.Render(it.Title) + "  " + it.Date
			if it.Location != "" {
				line += dimStyle.Render("  " + it.Location)
			}
			lines = append(lines, smallStyle.Render(line))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func card(it layout.Item, withDescription bool) string {
	lines := []string{titleStyle.Render(it.Title), it.Date}
	if it.Location != "" {
		lines = append(lines, dimStyle.Render(it.Location))
	}
	if withDescription && it.Description != "" {
		lines = append(lines, "", it.Description)
	}
	return strings.Join(lines, "\n")
}
