package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/skycourier/internal/telemetry"
)

const frameFormat = "%-12s  %11s  %11s  %7s\n"

func newTelemetryCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Read the vehicle position stream",
	}

	var count int
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print position frames as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, frameFormat, "TIME", "LAT", "LON", "ALT")

			seen := 0
			return root.client().Watch(cmd.Context(), func(f telemetry.Frame) bool {
				fmt.Fprintf(out, frameFormat, time.Now().Format("15:04:05.000"),
					fmt.Sprintf("%.6f", f.Latitude), fmt.Sprintf("%.6f", f.Longitude), fmt.Sprintf("%.1f", f.Altitude))
				seen++
				return count <= 0 || seen < count
			})
		},
	}
	watch.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many frames; 0 watches until interrupted.")

	cmd.AddCommand(watch)
	return cmd
}
