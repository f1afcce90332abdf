package main

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/vango-go/vai-spy/pkg/core/settings"
)

func defaultSettingsPath() string {
	if v := strings.TrimSpace(os.Getenv("SPYVOICE_SETTINGS_PATH")); v != "" {
		return v
	}
	return "settings.toml"
}

func newSettingsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the game settings the AI seat follows",
	}
	cmd.PersistentFlags().StringVar(&path, "file", defaultSettingsPath(), "settings file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := settings.Open(path)
			if err != nil {
				return err
			}
			values, err := settingsValues(store.Current())
			if err != nil {
				return err
			}

			st := newStyles()
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, st.title.Render(store.Path())); err != nil {
				return err
			}
			for _, key := range settings.Keys() {
				v, ok := values[key]
				rendered := st.muted.Render("(unset)")
				if ok {
					rendered = st.value.Render(fmt.Sprint(v))
				}
				if _, err := fmt.Fprintln(out, st.key.Render(key)+rendered); err != nil {
					return err
				}
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting; a running server picks it up",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.Open(path)
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", strings.ToLower(strings.TrimSpace(args[0])), args[1])
			return err
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func settingsValues(st settings.Settings) (map[string]any, error) {
	data, err := toml.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	values := map[string]any{}
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return values, nil
}
