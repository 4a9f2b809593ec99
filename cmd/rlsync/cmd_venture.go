package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/internal/service"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
	importFormat string
	autofill     bool
)

var ventureCmd = &cobra.Command{
	Use:   "venture",
	Short: "Manage locally stored ventures",
}

var ventureNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a venture and make it active",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVentureNew,
}

var ventureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ventures, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runVentureList,
}

var ventureLoadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Make a stored venture active",
	Args:  cobra.ExactArgs(1),
	RunE:  runVentureLoad,
}

var ventureDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a venture and its submission history",
	Args:  cobra.ExactArgs(1),
	RunE:  runVentureDelete,
}

var ventureRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Start a new assessment round for the active venture",
	Long: `Restart clears the scores and begins the next assessment round. The
next submission creates a new remote row instead of updating the old one.`,
	Args: cobra.NoArgs,
	RunE: runVentureRestart,
}

var ventureExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a venture as JSON or YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVentureExport,
}

var ventureImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an exported venture as a new, unsubmitted venture",
	Args:  cobra.ExactArgs(1),
	RunE:  runVentureImport,
}

func init() {
	ventureNewCmd.Flags().BoolVar(&autofill, "autofill", false, "Fill the portfolio from the remote name index")
	ventureExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format (json|yaml)")
	ventureExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	ventureImportCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format (json|yaml); defaults to the file extension")
}

func runVentureNew(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	sc := current.sc()
	id := current.store.Create(sc, name)

	if autofill {
		current.cache.VentureNames(cmd.Context())
		if portfolio, ok := current.cache.PortfolioFor(name); ok {
			if err := current.store.SetPortfolio(sc, portfolio); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Portfolio set to %s\n", portfolio)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created venture %q (%s)\n", sc.Venture.Name, id)
	return nil
}

func runVentureList(cmd *cobra.Command, args []string) error {
	ventures := current.store.List()
	if len(ventures) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No ventures yet.")
		return nil
	}

	activeID := ""
	if sc := current.sc(); sc.Active() {
		activeID = sc.Venture.ID
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tROUND\tSTATUS\tUPDATED")
	for _, v := range ventures {
		marker := ""
		if v.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			marker,
			v.ID,
			v.Name,
			v.AssessmentNumber,
			current.tracker.Status(v).Label(),
			v.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	return w.Flush()
}

func runVentureLoad(cmd *cobra.Command, args []string) error {
	if !current.store.Load(current.sc(), args[0]) {
		return fmt.Errorf("venture %s not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %q\n", current.sc().Venture.Name)
	return nil
}

func runVentureDelete(cmd *cobra.Command, args []string) error {
	current.store.Delete(current.sc(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func runVentureRestart(cmd *cobra.Command, args []string) error {
	if err := current.store.Restart(current.sc()); err != nil {
		return err
	}
	v := current.sc().Venture
	fmt.Fprintf(cmd.OutOrStdout(), "Started assessment #%d for %q\n", v.AssessmentNumber, v.Name)
	return nil
}

func runVentureExport(cmd *cobra.Command, args []string) error {
	format, err := service.ParseExportFormat(exportFormat)
	if err != nil {
		return err
	}

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	data, err := current.store.Export(current.sc(), id, format)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", exportOutput)
	return nil
}

func runVentureImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	name := importFormat
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(args[0]), ".")
	}
	format, err := service.ParseExportFormat(name)
	if err != nil {
		return err
	}

	v, err := current.store.Import(data, format)
	if err != nil {
		return fmt.Errorf("cannot import %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s\n", v.Name, v.ID)
	return nil
}

func formatScores(v *domain.Venture) string {
	var parts []string
	for _, c := range domain.Categories(v.IsHealthTrack) {
		parts = append(parts, fmt.Sprintf("%s=%d", c, v.Scores[c]))
	}
	return strings.Join(parts, " ")
}
