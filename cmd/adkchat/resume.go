package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id> <invocation-id>",
	Short: "Resume an interrupted turn",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newCache()
		defer c.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		id := args[0]
		if _, err := c.Load(ctx, id); err != nil {
			return err
		}
		run, err := c.Resume(ctx, id, args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		follow(ctx, c, run, newPrinter(out, newStyles(lipgloss.NewRenderer(out)), false))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
