package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/ui"
)

var (
	reportSeverity string
	reportSubject  string
	reportAt       string
)

var reportCmd = &cobra.Command{
	Use:     "report [body...]",
	GroupID: "capture",
	Short:   "File an activity report",
	Long: `File an activity report for the current shift.

The --at flag accepts natural language ("20 minutes ago", "yesterday
9pm") for when the activity occurred; it defaults to now.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch reportSeverity {
		case "info", "warning", "incident":
		default:
			return fmt.Errorf("severity must be info, warning or incident")
		}

		occurredAt := time.Now()
		if reportAt != "" {
			w := when.New(nil)
			w.Add(en.All...)
			w.Add(common.All...)

			r, err := w.Parse(reportAt, time.Now())
			if err != nil || r == nil {
				return fmt.Errorf("could not understand time %q", reportAt)
			}
			occurredAt = r.Time
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		body := strings.Join(args, " ")
		subject := reportSubject
		if subject == "" {
			subject = summarize(body)
		}

		rec, err := a.capture(cmd.Context(), model.EntityActivityReport, model.ActivityReport{
			GuardID:    a.cfg.Device.GuardID,
			SiteID:     a.cfg.Device.SiteID,
			Severity:   reportSeverity,
			Subject:    subject,
			Body:       body,
			OccurredAt: occurredAt,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Report filed for %s %s\n",
			ui.RenderSuccess("✓"),
			occurredAt.Format("Jan 2 15:04"),
			ui.RenderDim(fmt.Sprintf("(queued #%d)", rec.ID)))
		return nil
	},
}

// summarize derives a subject line from the report body.
func summarize(body string) string {
	const max = 60
	if len(body) <= max {
		return body
	}
	return body[:max-1] + "…"
}

func init() {
	reportCmd.Flags().StringVar(&reportSeverity, "severity", "info", "info, warning or incident")
	reportCmd.Flags().StringVar(&reportSubject, "subject", "", "subject line (default: derived from body)")
	reportCmd.Flags().StringVar(&reportAt, "at", "", "when it occurred, natural language accepted")
	rootCmd.AddCommand(reportCmd)
}
