package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Query remote assessment data",
}

var lookupNamesCmd = &cobra.Command{
	Use:   "names [query]",
	Short: "Search known venture names",
	Args:  cobra.ArbitraryArgs,
	RunE:  runLookupNames,
}

var lookupMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List submissions made by the configured advisor",
	Args:  cobra.NoArgs,
	RunE:  runLookupMine,
}

func runLookupNames(cmd *cobra.Command, args []string) error {
	refs := current.cache.Search(cmd.Context(), strings.Join(args, " "))
	if len(refs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching ventures.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPORTFOLIO\tSOURCE")
	for _, ref := range refs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ref.Name, ref.Portfolio, ref.Source)
	}
	return w.Flush()
}

func runLookupMine(cmd *cobra.Command, args []string) error {
	advisor := current.store.Advisor()
	if advisor == "" {
		return errors.New("no advisor configured; run `rlsync set advisor <name>` first")
	}

	rows := current.cache.AdvisorSubmissions(cmd.Context(), advisor)
	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No submissions found for %s.\n", advisor)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tVENTURE\tROUND\tPORTFOLIO\tROW")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			row.Date(),
			row.VentureName,
			row.AssessmentNumber,
			row.Portfolio,
			row.RowID,
		)
	}
	return w.Flush()
}
