package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd(deps serveDeps) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "spyvoice",
		Short:         "Voice-driven AI player for spy party games",
		Long:          "spyvoice listens to the table during the discussion phase, asks players questions when the room goes quiet, answers questions aimed at the AI, and streams its state to the game screens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(deps),
		newClassifyCmd(),
		newSettingsCmd(),
	)
	rootCmd.AddCommand(newRemoteCmds()...)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

type styles struct {
	title lipgloss.Style
	key   lipgloss.Style
	value lipgloss.Style
	yes   lipgloss.Style
	no    lipgloss.Style
	muted lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		key:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(28),
		value: lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		yes:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		no:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (s styles) flag(v bool) string {
	if v {
		return s.yes.Render("yes")
	}
	return s.no.Render("no")
}
