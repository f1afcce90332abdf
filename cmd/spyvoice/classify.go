package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
)

type classifyReport struct {
	Text           string                    `json:"text"`
	Normalized     string                    `json:"normalized"`
	YesNo          bool                      `json:"yesNo"`
	SuspicionDelta float64                   `json:"suspicionDelta"`
	Classification discussion.Classification `json:"classification"`
}

func classifyLine(text, aiName, pendingName string) classifyReport {
	return classifyReport{
		Text:           text,
		Normalized:     discussion.Normalize(text),
		YesNo:          discussion.IsYesNoQuestion(text),
		SuspicionDelta: discussion.ScoreSuspicionFromTranscript(text),
		Classification: discussion.ClassifyUtterance(text, discussion.ClassifyContext{
			ActiveAIName:      aiName,
			PendingTargetName: pendingName,
		}),
	}
}

func newClassifyCmd() *cobra.Command {
	var (
		aiName  string
		pending string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Show how the AI seat reads a transcript line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := classifyLine(strings.Join(args, " "), aiName, pending)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(report)
			}
			return renderClassify(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&aiName, "ai-name", "", "display name of the active AI player")
	cmd.Flags().StringVar(&pending, "pending", "", "name of the player the AI is waiting on")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func renderClassify(w io.Writer, r classifyReport) error {
	st := newStyles()
	rows := [][2]string{
		{"normalized", st.value.Render(r.Normalized)},
		{"kind", st.value.Render(string(r.Classification.Kind))},
		{"yes/no question", st.flag(r.YesNo)},
		{"addressed to ai", st.flag(r.Classification.AddressedToAI)},
		{"expects ai reply", st.flag(r.Classification.ExpectsReplyFromAI)},
		{"suspicion delta", st.value.Render(fmt.Sprintf("%+.2f", r.SuspicionDelta))},
	}
	if _, err := fmt.Fprintln(w, st.title.Render(r.Text)); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, st.key.Render(row[0])+row[1]); err != nil {
			return err
		}
	}
	return nil
}
