package cmd

import (
	"fmt"

	"github.com/jd3nn1s/ecojuicer/efficiency"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every trip in the history",
	RunE:  runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	trips, err := trip.LoadFile(cfg.Trips.File)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, t := range trips {
		b := efficiency.Evaluate(t)
		fmt.Fprintf(out, "%s  %s  %6.2f km  score %3d (speed %.0f, rpm %.0f, fuel %.0f)\n",
			t.StartedAt.Format("2006-01-02 15:04"), t.ID, t.DistanceKm, b.Overall, b.Speed, b.RPM, b.Fuel)
		fmt.Fprintf(out, "  %s\n", efficiency.Feedback(t))
	}
	return nil
}
