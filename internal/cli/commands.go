package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitoshi/meetingbingo/internal/bingo"
	"github.com/hitoshi/meetingbingo/internal/tabview"
)

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tab state for the configured meeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := startView(cmd, opts, tabview.FrameContent)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "meeting:\t%s\n", view.MeetingID())
			fmt.Fprintf(w, "phase:\t%s\n", view.Phase())
			fmt.Fprintf(w, "user:\t%s\n", view.UserID())
			fmt.Fprintf(w, "organizer:\t%t\n", view.IsOrganizer())
			fmt.Fprintf(w, "topics:\t%d\n", len(view.Topics()))
			if err := w.Flush(); err != nil {
				return err
			}
			printErrors(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func newTopicsCommand(opts *options) *cobra.Command {
	topics := &cobra.Command{
		Use:   "topics",
		Short: "List or edit the meeting's bingo topics",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := openView(cmd, opts, tabview.FrameContent)
			if err != nil {
				return err
			}
			printTopics(cmd.OutOrStdout(), view.Topics())
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Fill an empty topic list with the default topics (organizer only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := openView(cmd, opts, tabview.FrameContent)
			if err != nil {
				return err
			}
			if err := view.InitializeTopics(cmd.Context()); err != nil {
				return err
			}
			printTopics(cmd.OutOrStdout(), view.Topics())
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <topic>",
		Short: "Append a topic (organizer only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := openView(cmd, opts, tabview.FrameContent)
			if err != nil {
				return err
			}
			if err := view.AddTopic(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			printTopics(cmd.OutOrStdout(), view.Topics())
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <index>...",
		Short: "Delete topics by index as shown by 'topics list' (organizer only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexes, err := parseIndexes(args)
			if err != nil {
				return err
			}
			view, err := openView(cmd, opts, tabview.FrameContent)
			if err != nil {
				return err
			}
			if err := view.DeleteTopics(cmd.Context(), indexes); err != nil {
				return err
			}
			printTopics(cmd.OutOrStdout(), view.Topics())
			return nil
		},
	}

	topics.AddCommand(list, initCmd, add, del)
	return topics
}

func newCardCommand(opts *options) *cobra.Command {
	card := &cobra.Command{
		Use:   "card",
		Short: "Play your bingo card",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your bingo card, creating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := openView(cmd, opts, tabview.FrameSidePanel)
			if err != nil {
				return err
			}
			return printGrid(cmd.OutOrStdout(), view.Grid(), len(view.Topics()))
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Throw away your card and draw a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := openView(cmd, opts, tabview.FrameSidePanel)
			if err != nil {
				return err
			}
			g, err := view.GetOrCreateGrid(true)
			if err != nil && !errors.Is(err, bingo.ErrNotEnoughTopics) {
				return err
			}
			return printGrid(cmd.OutOrStdout(), g, len(view.Topics()))
		},
	}

	sel := &cobra.Command{
		Use:   "select <row> <col>",
		Short: "Toggle a cell (0-based); a full row or column posts BINGO! to the meeting chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parseIndexes(args)
			if err != nil {
				return err
			}
			view, err := openView(cmd, opts, tabview.FrameSidePanel)
			if err != nil {
				return err
			}
			hit, err := view.SelectCell(cmd.Context(), pos[0], pos[1])
			if err != nil {
				return err
			}
			if err := printGrid(cmd.OutOrStdout(), view.Grid(), len(view.Topics())); err != nil {
				return err
			}
			if hit {
				fmt.Fprintln(cmd.OutOrStdout(), tabview.BingoMessage)
			}
			return nil
		},
	}

	card.AddCommand(show, refresh, sel)
	return card
}

func newConfigCommand(opts *options) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *opts.cfg
			if cfg.Token != "" {
				cfg.Token = "***"
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "server:\t%s\n", cfg.Server)
			fmt.Fprintf(w, "token:\t%s\n", cfg.Token)
			fmt.Fprintf(w, "meeting_id:\t%s\n", cfg.MeetingID)
			fmt.Fprintf(w, "frame_context:\t%s\n", cfg.FrameContext)
			fmt.Fprintf(w, "grid_dir:\t%s\n", cfg.GridDir)
			return w.Flush()
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write the effective settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = DefaultConfigPath()
			}
			if err := SaveConfig(path, opts.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}

	cfgCmd.AddCommand(show, save)
	return cfgCmd
}

func parseIndexes(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", a, err)
		}
		out = append(out, i)
	}
	return out, nil
}

func printTopics(w io.Writer, topics []string) {
	if len(topics) == 0 {
		fmt.Fprintln(w, "No topics yet.")
		return
	}
	for i, t := range topics {
		fmt.Fprintf(w, "%3d  %s\n", i, t)
	}
}

func printGrid(w io.Writer, g bingo.Grid, topicCount int) error {
	if g == nil {
		fmt.Fprintf(w, "Not enough topics for a bingo card (%d of %d).\n", topicCount, bingo.MinTopics)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range g {
		cells := make([]string, len(row))
		for i, c := range row {
			mark := "[ ]"
			if c.Selected {
				mark = "[x]"
			}
			cells[i] = mark + " " + strings.TrimSpace(c.Value)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
