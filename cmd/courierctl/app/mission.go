package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/skycourier/internal/gateway"
	"github.com/autopeer-io/skycourier/internal/mission"
)

func newMissionCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Trigger, inspect and abort delivery missions",
	}
	cmd.AddCommand(newTriggerCommand(root), newStatusCommand(root), newAbortCommand(root))
	return cmd
}

func newTriggerCommand(root *rootOptions) *cobra.Command {
	var (
		lat, lon float64
		wait          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Fly to a coordinate and back, waiting for the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			resp, err := root.client().Track(ctx, lat, lon)
			if err != nil {
				return err
			}
			printTrack(cmd.OutOrStdout(), resp)
			if resp.Error != "" {
				return fmt.Errorf("mission did not complete")
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Target latitude in degrees.")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Target longitude in degrees.")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Minute, "How long to wait for the mission to end.")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current mission phase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			st, err := root.client().Status(ctx)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newAbortCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abort the mission in flight; the vehicle lands where it is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			aborted, err := root.client().Abort(ctx)
			if err != nil {
				return err
			}
			if !aborted {
				fmt.Fprintln(cmd.OutOrStdout(), "no mission in flight")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "abort requested")
			return nil
		},
	}
}

func printTrack(w io.Writer, resp *gateway.TrackResponse) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("STATUS:", resp.Status)
	if resp.Error != "" {
		table.AddRow("ERROR:", resp.Error)
	}
	fmt.Fprintln(w, table)
}

func printStatus(w io.Writer, st *mission.Status) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true

	table.AddRow("PHASE:", st.Phase)
	table.AddRow("ACTIVE:", st.Active)
	if st.MissionID != "" {
		table.AddRow("MISSION:", st.MissionID)
	}
	if st.Target != nil {
		table.AddRow("TARGET:", fmt.Sprintf("%.6f, %.6f @ %.1fm", st.Target.Latitude, st.Target.Longitude, st.Target.Altitude))
	}
	if st.StartedAt != nil {
		table.AddRow("STARTED:", st.StartedAt.Format(time.RFC3339))
	}
	if s := st.LastSnapshot; s != nil {
		table.AddRow("VEHICLE:", fmt.Sprintf("%.6f, %.6f @ %.1fm %s armed=%t", s.Latitude, s.Longitude, s.Altitude, s.Mode, s.Armed))
	}
	if st.LastResult != "" {
		table.AddRow("LAST RESULT:", st.LastResult)
	}
	if st.Error != "" {
		table.AddRow("ERROR:", st.Error)
	}
	fmt.Fprintln(w, table)
}
