package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"partnermap/internal/bootstrap"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/usecase/partnerimport"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Partner list import commands",
}

var importSubmitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Upload a partner list and queue an import job",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errs.Wrapf(err, "read %s", args[0])
		}
		job, err := svc.Imports.Submit(cmd.Context(), partnerimport.Upload{
			FileName: filepath.Base(args[0]),
			Data:     data,
		})
		if err != nil {
			return errs.Wrap(err, "submit import")
		}

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			ran, err := svc.Runner.Run(cmd.Context(), job.ID)
			if errors.Is(err, partner.ErrJobNotClaimable) {
				// Another worker took it first.
				ran, err = svc.Imports.Get(cmd.Context(), job.ID)
			}
			if err != nil {
				return errs.Wrap(err, "run import")
			}
			return writeJSON(cmd, newImportJobView(ran))
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "import queued id=%s file=%s\n", job.ID, job.OriginalFileName); err != nil {
			return errs.Wrap(err, "write import output")
		}
		return nil
	}),
}

var importStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Print an import job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		job, err := svc.Imports.Get(cmd.Context(), args[0])
		if err != nil {
			return errs.Wrap(err, "get import job")
		}
		return writeJSON(cmd, newImportJobView(job))
	}),
}

var importWatchCmd = &cobra.Command{
	Use:   "watch-dir <dir>",
	Short: "Submit partner lists dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		quiet, _ := cmd.Flags().GetDuration("quiet")
		return runWatchDir(cmd.Context(), args[0], quiet, svc.Imports)
	}),
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importSubmitCmd, importStatusCmd, importWatchCmd)

	importSubmitCmd.Flags().Bool("wait", false, "Run the import in this process and print the finished job")
	importWatchCmd.Flags().Duration("quiet", defaultWatchQuiet, "Wait this long after the last write before submitting")
}
