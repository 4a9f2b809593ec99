package main

import (
	"fmt"
	"strconv"
	"strings"

	"readiness-sync/internal/domain"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score <category> <level>",
	Short: "Set a readiness level (0-9) for the active venture",
	Long: `Set a readiness level for one category of the active venture.

Categories: IP, Technology, Market, Product, Team, GTM, Business, Funding,
and Regulatory on the health track. A level of 0 clears the category.`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Edit fields of the active venture",
}

var setNameCmd = &cobra.Command{
	Use:   "name <name>",
	Short: "Rename the active venture",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.store.SetName(current.sc(), strings.Join(args, " "))
	},
}

var setPortfolioCmd = &cobra.Command{
	Use:   "portfolio <portfolio>",
	Short: "Set the portfolio of the active venture",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.store.SetPortfolio(current.sc(), strings.Join(args, " "))
	},
}

var setHealthCmd = &cobra.Command{
	Use:   "health <true|false>",
	Short: "Toggle the health track, which adds the Regulatory category",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetHealth,
}

var setAdvisorCmd = &cobra.Command{
	Use:   "advisor <name>",
	Short: "Remember the advisor name used for submissions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		current.store.SetAdvisor(current.sc(), name)
		fmt.Fprintf(cmd.OutOrStdout(), "Advisor set to %s\n", name)
		return nil
	},
}

func runScore(cmd *cobra.Command, args []string) error {
	c, ok := domain.ParseCategory(args[0])
	if !ok {
		return fmt.Errorf("unknown category %q", args[0])
	}
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("level must be a number: %w", err)
	}

	if err := current.store.SetScore(current.sc(), c, level); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", c, level)
	return nil
}

func runSetHealth(cmd *cobra.Command, args []string) error {
	on, err := strconv.ParseBool(args[0])
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", args[0])
	}
	return current.store.SetHealthTrack(current.sc(), on)
}
