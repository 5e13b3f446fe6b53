package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/docwiz/wizsync/internal/journal"
	"github.com/docwiz/wizsync/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded sync events",
	Long: `Show events recorded in the journal, oldest first.

--since accepts a duration ("2h"), an RFC3339 timestamp or plain English
("yesterday", "last monday", "3 days ago").

Examples:
  wizsync history --since "this morning"
  wizsync history --wizard 42 --limit 10`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("since", "", "Only show events after this time")
	historyCmd.Flags().Int("limit", journal.DefaultLimit, "Maximum number of events")
	historyCmd.Flags().Int("wizard", -1, "Only show events for this wizard ID")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	sinceFlag, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")
	wizardID, _ := cmd.Flags().GetInt("wizard")

	since, err := parseSince(sinceFlag, time.Now())
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.JournalPath(), logger.Slog())
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	events, err := j.Events(cmd.Context(), journal.Query{
		Since:    since,
		ByWizard: wizardID >= 0,
		WizardID: wizardID,
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"TIME", "LEVEL", "ACTION", "WIZARD", "MESSAGE"}, historyRows(events)))
	return nil
}

func historyRows(events []report.Event) [][]string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		wizard := ""
		if ev.WizardID != report.NoWizard {
			wizard = strconv.Itoa(ev.WizardID)
		}
		msg := ev.Message
		if text := ev.ErrText(); text != "" {
			msg += ": " + text
		}
		rows = append(rows, []string{
			ev.Time.Local().Format("2006-01-02 15:04:05"),
			ev.Level.String(),
			string(ev.Action),
			wizard,
			msg,
		})
	}
	return rows
}

// parseSince turns a --since value into a lower time bound. Empty means no
// bound.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a time or duration", s)
	}
	return r.Time, nil
}
