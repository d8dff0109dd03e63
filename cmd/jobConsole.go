package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"partnermap/internal/bootstrap"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
	"partnermap/internal/usecase/jobconsole"
)

var consoleImportCmd = &cobra.Command{
	Use:   "import <id>",
	Short: "Follow an import job until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		return runJobConsole(cmd, jobconsole.ImportLoader(svc.Imports, args[0]))
	}),
}

var consoleGeocodeCmd = &cobra.Command{
	Use:   "geocode [id]",
	Short: "Follow a geocode job, the latest one without an id",
	Args:  cobra.MaximumNArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			latest, found, err := svc.Geocodes.Latest(cmd.Context())
			if err != nil {
				return errs.Wrap(err, "get latest geocode job")
			}
			if !found {
				return errs.Wrap(errNoGeocodeJob, "open geocode console")
			}
			id = latest.ID
		}
		return runJobConsole(cmd, jobconsole.GeocodeLoader(svc.Geocodes, id))
	}),
}

func runJobConsole(cmd *cobra.Command, load jobconsole.Loader) error {
	ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

	refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
	if refreshInterval <= 0 {
		refreshInterval = 2 * time.Second
	}
	exitOnFinish, _ := cmd.Flags().GetBool("exit-on-finish")

	model := jobconsole.NewJobModel(ctx, load, jobconsole.Options{
		RefreshInterval: refreshInterval,
		ExitOnFinish:    exitOnFinish,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return errs.Wrap(err, "run job console")
	}
	return nil
}

func init() {
	consoleCmd.AddCommand(consoleImportCmd, consoleGeocodeCmd)

	consoleCmd.PersistentFlags().Duration("refresh-interval", 2*time.Second, "Polling interval")
	consoleCmd.PersistentFlags().Bool("exit-on-finish", false, "Quit once the job reaches a terminal status")
}
