package cmd

import (
	"fmt"
	"os"

	"github.com/jd3nn1s/ecojuicer/driver"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var scalerFile string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the driving style of the trip history",
	Long: `Classify the driving style from the trip history and print advice for the
most recent trip. With --scaler the latest trip's features are also printed
normalised by the given scaler parameters.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&scalerFile, "scaler", "", "Scaler parameters file (JSON)")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	trips, err := trip.LoadFile(cfg.Trips.File)
	if err != nil {
		return err
	}
	if len(trips) == 0 {
		return errors.Errorf("no trips in %s", cfg.Trips.File)
	}

	out := cmd.OutOrStdout()
	category := driver.Classify(trips)
	latest := trips[len(trips)-1]
	fmt.Fprintf(out, "%s: %s\n", category.Label(), category.Description())
	fmt.Fprintf(out, "%s\n", driver.Feedback(category, latest))

	if scalerFile == "" {
		return nil
	}
	f, err := os.Open(scalerFile)
	if err != nil {
		return errors.Wrapf(err, "unable to open scaler %s", scalerFile)
	}
	defer f.Close()
	scaler, err := driver.LoadScaler(f)
	if err != nil {
		return err
	}
	features := []float64{
		latest.AverageFuelConsumption,
		latest.AverageRPM,
		float64(latest.MaxRPM),
		latest.AverageSpeedKmh,
		float64(latest.Score()),
	}
	fmt.Fprintf(out, "features: %v\n", scaler.Transform(features))
	return nil
}
