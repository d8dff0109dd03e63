package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"partnermap/internal/bootstrap"
	"partnermap/internal/domain/geocode"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode backfill and lookup commands",
}

var geocodeBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Queue a backfill for schools without coordinates",
	RunE: withServices(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, svc *services) error {
		limit, _ := cmd.Flags().GetInt("limit")
		job, err := svc.Geocodes.Submit(cmd.Context(), limit)
		if err != nil {
			return errs.Wrap(err, "submit geocode backfill")
		}

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			ran, err := svc.Geocodes.Run(cmd.Context(), job.ID)
			if errors.Is(err, partner.ErrJobNotClaimable) {
				ran, err = svc.Geocodes.Get(cmd.Context(), job.ID)
			}
			if err != nil {
				return errs.Wrap(err, "run geocode backfill")
			}
			return writeJSON(cmd, newGeocodeJobView(ran))
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "geocode backfill queued id=%s limit=%d\n", job.ID, job.RequestedLimit); err != nil {
			return errs.Wrap(err, "write geocode output")
		}
		return nil
	}),
}

var geocodeStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Print a geocode job as JSON, the latest one without an id",
	Args:  cobra.MaximumNArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		if len(args) == 1 {
			job, err := svc.Geocodes.Get(cmd.Context(), args[0])
			if err != nil {
				return errs.Wrap(err, "get geocode job")
			}
			return writeJSON(cmd, newGeocodeJobView(job))
		}

		job, found, err := svc.Geocodes.Latest(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "get latest geocode job")
		}
		if !found {
			return writeJSON(cmd, map[string]any{"job": nil})
		}
		return writeJSON(cmd, map[string]any{"job": newGeocodeJobView(job)})
	}),
}

type lookupView struct {
	Provider    string      `json:"provider"`
	Query       string      `json:"query"`
	Found       bool        `json:"found"`
	Coordinates *[2]float64 `json:"coordinates,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
}

var geocodeLookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Geocode one free-text query through the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: withServices(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *services) error {
		provider, _ := cmd.Flags().GetString("provider")
		query := strings.Join(args, " ")

		result, found, err := svc.Resolver.Lookup(cmd.Context(), provider, query)
		if err != nil {
			return errs.Wrap(err, "geocode lookup")
		}
		view := lookupView{Provider: provider, Query: geocode.CleanQuery(query), Found: found}
		if found {
			view.Provider = result.Provider
			view.Query = result.Query
			coords := result.Point().Coordinates()
			view.Coordinates = &coords
			view.DisplayName = result.DisplayName
		}
		return writeJSON(cmd, view)
	}),
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	geocodeCmd.AddCommand(geocodeBackfillCmd, geocodeStatusCmd, geocodeLookupCmd)

	geocodeBackfillCmd.Flags().Int("limit", partner.DefaultGeocodeLimit, "Maximum schools to geocode")
	geocodeBackfillCmd.Flags().Bool("wait", false, "Run the backfill in this process and print the finished job")
	geocodeLookupCmd.Flags().String("provider", geocode.ProviderNominatim, "Provider: nominatim or google")
}
