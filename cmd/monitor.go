package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jd3nn1s/ecojuicer"
	"github.com/jd3nn1s/ecojuicer/api"
	"github.com/jd3nn1s/ecojuicer/config"
	"github.com/jd3nn1s/ecojuicer/dashcan"
	"github.com/jd3nn1s/ecojuicer/driver"
	"github.com/jd3nn1s/ecojuicer/efficiency"
	"github.com/jd3nn1s/ecojuicer/forwarder"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	testMode       bool
	printTelemetry bool
	duration       time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll the adapter and track the current trip",
	Long: `Continuously poll the adapter, publish live telemetry and keep the running
trip. On Ctrl+C the trip is summarised, scored and appended to the trip history.

With --testmode a simulated adapter replays a drive instead of opening a link.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&testMode, "testmode", false, "Use a simulated adapter")
	monitorCmd.Flags().BoolVar(&printTelemetry, "print-telemetry", false, "Print telemetry to stdout")
	monitorCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(monitorCmd)
}

// printForwarder writes every snapshot whose readings differ from the
// previous one.
type printForwarder struct {
	out io.Writer
}

func (p printForwarder) Forward(newSnapshot *ecojuicer.Snapshot, prevSnapshot *ecojuicer.Snapshot) error {
	if newSnapshot.Err == nil && prevSnapshot.Err == nil && sameReadings(newSnapshot, prevSnapshot) {
		return nil
	}
	_, err := fmt.Fprintln(p.out, newSnapshot)
	return err
}

func sameReadings(a, b *ecojuicer.Snapshot) bool {
	return a.RPM == b.RPM &&
		a.SpeedKmh == b.SpeedKmh &&
		a.Gear == b.Gear &&
		a.HasCoolant == b.HasCoolant &&
		a.CoolantTempC == b.CoolantTempC &&
		a.FuelRateLh == b.FuelRateLh &&
		a.DistanceKm == b.DistanceKm &&
		a.FuelUsedL == b.FuelUsedL
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	jc := ecojuicer.NewJuicer(cfg.Settings(ecojuicer.NewMetrics(reg)))

	// slow forwarders get their own goroutine and are drained before the
	// trip is reported
	var wg sync.WaitGroup
	addAsync := func(fwd ecojuicer.Forwarder) {
		async := ecojuicer.NewAsyncForwarder(fwd)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = async.Start(ctx)
		}()
		jc.AddForwarder(async)
	}

	var udp *forwarder.UDPForwarder
	if cfg.Forwarder.Server != "" {
		if udp, err = forwarder.NewUDPForwarder(cfg.UDPConfig()); err != nil {
			return errors.Wrap(err, "unable to start UDP forwarder")
		}
		defer udp.Close()
		go func() {
			_ = udp.Start(ctx)
		}()
		jc.AddForwarder(udp)
	}
	if cfg.CAN.Interface != "" {
		dash := dashcan.NewDash(cfg.CAN.Interface, dashcan.Callbacks{
			ResetTrip: jc.ResetTripData,
		})
		go func() {
			_ = ecojuicer.Retry(ctx, dash)
		}()
		defer dash.Close()
		addAsync(dash)
	}
	if printTelemetry {
		addAsync(printForwarder{out: cmd.OutOrStdout()})
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: api.NewServer(jc, reg).Router(),
		}
		go func() {
			log.WithField("addr", cfg.Metrics.Addr).Info("serving api and metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithField("err", err).Error("http server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dial := cfg.LinkOptions().Dial
	link := cfg.LinkOptions().String()
	if testMode {
		dial = ecojuicer.NewSimulatedAdapter().Dial
		link = "simulated"
	}
	log.WithField("link", link).Info("monitoring")

	err = jc.Supervise(ctx, dial, cfg.SessionOptions())
	interrupted := ctx.Err() != nil
	stop()
	wg.Wait()
	if err != nil && !interrupted {
		return err
	}
	return finishTrip(cmd.OutOrStdout(), cfg, jc.Summarize(), udp)
}

// finishTrip scores a trip, reports it and stores it in the history.
func finishTrip(out io.Writer, cfg *config.Config, summary trip.Summary, udp *forwarder.UDPForwarder) error {
	if summary.StartedAt.IsZero() {
		log.Info("no telemetry received, trip not saved")
		return nil
	}
	score, feedback := efficiency.Score(summary)
	summary = summary.WithScore(score)

	fmt.Fprintf(out, "Trip %s\n", summary.ID)
	fmt.Fprintf(out, "  Distance: %.2f km in %s\n", summary.DistanceKm, summary.Duration.Round(time.Second))
	fmt.Fprintf(out, "  Fuel used: %.3f L (%.2f L/100km)\n", summary.FuelUsedL, summary.AverageFuelConsumption)
	fmt.Fprintf(out, "  Score: %d\n  %s\n", score, feedback)

	if udp != nil {
		if err := udp.SendSummary(summary); err != nil {
			log.WithField("err", err).Warn("unable to forward trip summary")
		}
	}

	if err := trip.AppendFile(cfg.Trips.File, summary); err != nil {
		return err
	}
	history, err := trip.LoadFile(cfg.Trips.File)
	if err != nil {
		return err
	}
	category := driver.Classify(history)
	fmt.Fprintf(out, "  Driver: %s\n  %s\n", category.Label(), driver.Feedback(category, summary))
	return nil
}
