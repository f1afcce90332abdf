package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/types"
	spyvoice "github.com/vango-go/vai-spy/sdk"
)

type remoteFlags struct {
	server string
	apiKey string
}

func (f *remoteFlags) bind(cmd *cobra.Command) {
	server := strings.TrimSpace(os.Getenv("SPYVOICE_URL"))
	if server == "" {
		server = "http://127.0.0.1:8080"
	}
	cmd.PersistentFlags().StringVar(&f.server, "server", server, "spyvoice server URL")
	cmd.PersistentFlags().StringVar(&f.apiKey, "api-key", os.Getenv("SPYVOICE_API_KEY"), "bearer token for control requests")
}

func (f *remoteFlags) client() *spyvoice.Client {
	return spyvoice.NewClient(f.server, spyvoice.WithAPIKey(f.apiKey))
}

// newRemoteCmds returns the commands that drive a running server.
func newRemoteCmds() []*cobra.Command {
	flags := &remoteFlags{}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the AI seat's state on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := flags.client().State(cmd.Context())
			if err != nil {
				return err
			}
			return renderState(cmd.OutOrStdout(), *snap)
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle",
		Short: "Pause or resume the AI seat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := flags.client().ToggleRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return renderState(cmd.OutOrStdout(), *snap)
		},
	}

	phase := &cobra.Command{
		Use:   "phase <setup|reveal|discussion|voting|finished>",
		Short: "Move the current match to another phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := flags.client().SetPhase(cmd.Context(), types.MatchStatus(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "match %s is now in %s\n", snap.ID, snap.Status)
			return err
		},
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return flags.client().WatchState(cmd.Context(), func(snap discussion.Snapshot) error {
				return renderState(out, snap)
			})
		},
	}

	cmds := []*cobra.Command{status, toggle, phase, watch}
	for _, c := range cmds {
		flags.bind(c)
	}
	return cmds
}

func renderState(w io.Writer, snap discussion.Snapshot) error {
	st := newStyles()
	s := snap.State
	rows := [][2]string{
		{"phase", st.value.Render(s.Phase)},
		{"runtime enabled", st.flag(s.RuntimeEnabled)},
		{"listening", st.flag(s.Listening)},
		{"speaking", st.flag(s.Speaking)},
		{"active ai", st.value.Render(s.ActiveAIName)},
		{"waiting on", st.value.Render(s.PendingTargetName)},
		{"last speaker", st.value.Render(s.LastSpeakerName)},
		{"last transcript", st.value.Render(s.LastTranscript)},
		{"last intervention", st.value.Render(s.LastIntervention)},
		{"silence", st.value.Render((time.Duration(s.SilenceMs) * time.Millisecond).String())},
	}
	if snap.Error != "" {
		rows = append(rows, [2]string{"error", st.no.Render(snap.Error)})
	}
	if _, err := fmt.Fprintln(w, st.title.Render("spyvoice "+s.UpdatedAt.Format(time.TimeOnly))); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, st.key.Render(row[0])+row[1]); err != nil {
			return err
		}
	}
	return nil
}
