package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"readiness-sync/internal/domain"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active venture and whether it has unsubmitted changes",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the active venture to the assessment proxy",
	Args:  cobra.NoArgs,
	RunE:  runSubmit,
}

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show the local submission history of a venture",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	sc := current.sc()
	if !sc.Active() {
		fmt.Fprintln(out, "No active venture. Create one with `rlsync venture new <name>`.")
		return nil
	}

	v := sc.Venture
	status := current.submitter.Status()
	fmt.Fprintf(out, "Venture:    %s (%s)\n", v.Name, v.ID)
	fmt.Fprintf(out, "Advisor:    %s\n", v.Advisor)
	fmt.Fprintf(out, "Portfolio:  %s\n", v.Portfolio)
	fmt.Fprintf(out, "Assessment: #%d\n", v.AssessmentNumber)
	fmt.Fprintf(out, "Scores:     %s\n", formatScores(v))
	fmt.Fprintf(out, "Status:     %s\n", status.Label())
	if status.LastSubmittedAt != nil {
		fmt.Fprintf(out, "Submitted:  %s\n", status.LastSubmittedAt.Local().Format(time.DateTime))
	}
	if v.Bound() {
		fmt.Fprintf(out, "Remote row: %s\n", v.RemoteRowID)
	}
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	result, err := current.submitter.Submit(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Message())
	if result.Confirmed() {
		fmt.Fprintf(out, "Row %s after %d attempt(s)\n", result.RowID, result.Attempts())
	} else {
		fmt.Fprintln(out, "The proxy did not confirm the write; it was sent as a best-effort beacon.")
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	id := ""
	if len(args) == 1 {
		id = args[0]
	} else if sc := current.sc(); sc.Active() {
		id = sc.Venture.ID
	}
	if id == "" {
		return errors.New("no venture selected")
	}

	entries := current.store.History(id)
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No submissions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tACTION\tOUTCOME\tTRANSPORT\tATTEMPTS\tROUND\tROW")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.At.Local().Format(time.DateTime),
			e.Action,
			e.Outcome,
			e.Transport,
			e.Attempts,
			e.AssessmentNumber,
			rowOrDash(e),
		)
	}
	return w.Flush()
}

func rowOrDash(e *domain.HistoryEntry) string {
	if e.RowID == "" {
		return "-"
	}
	return e.RowID
}
