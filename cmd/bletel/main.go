package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/squadracorsepolito/bletel"
	"github.com/squadracorsepolito/bletel/config"
	"github.com/squadracorsepolito/bletel/connector"
	"github.com/squadracorsepolito/bletel/internal"
	"github.com/squadracorsepolito/bletel/replay"
	"github.com/squadracorsepolito/bletel/session"
	"github.com/squadracorsepolito/bletel/telemetry"
	"github.com/squadracorsepolito/bletel/udp"
)

const shutdownTimeout = 5 * time.Second

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "bletel",
	Short:        "Decode the telemetry packets streamed by wearable devices",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

var planCmd = &cobra.Command{
	Use:          "plan",
	Short:        "Print the alignment plan of every configured device",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printPlans(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./bletel.yaml", "config file")
	rootCmd.AddCommand(planCmd)
}

func main() {
	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	l := internal.NewLogger("cmd", "bletel")

	file, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level, err := file.Level()
	if err != nil {
		return err
	}
	internal.SetLogLevel(level)

	if telCfg := file.TelemetryConfig(); telCfg != nil {
		providers, err := telemetry.Init(ctx, telCfg)
		if err != nil {
			return err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := providers.Shutdown(shutdownCtx); err != nil {
				l.Error("failed to shutdown telemetry", err)
			}
		}()
	}

	pipeline := bletel.NewPipeline()

	for _, dev := range file.Devices {
		if err := addDevice(pipeline, dev); err != nil {
			return err
		}
	}

	if err := pipeline.Init(ctx); err != nil {
		return err
	}

	pipeline.Run(ctx)

	done := make(chan struct{})
	go func() {
		pipeline.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		l.Info("shutting down")
	case <-done:
		l.Info("every device stopped")
	}

	pipeline.Stop()

	return nil
}

func addDevice(pipeline *bletel.Pipeline, dev *config.DeviceFile) error {
	sessCfg, err := dev.SessionConfig()
	if err != nil {
		return err
	}

	sourceToSession := connector.NewRingBuffer[[]byte](uint32(dev.GetQueueSize()))

	sess, err := session.New(sourceToSession, sessCfg)
	if err != nil {
		return err
	}

	var source bletel.Stage
	switch dev.GetSourceKind() {
	case config.SourceUDP:
		udpCfg := dev.UDPConfig()
		udpCfg.FitPacket(sess.Plan().ExpectedRawLength())
		source = udp.NewSource(sourceToSession, udpCfg)
	case config.SourceReplay:
		source = replay.NewSource(sourceToSession, dev.ReplayConfig())
	default:
		return fmt.Errorf("device %q: %w %q", dev.Name, config.ErrUnknownSourceKind, dev.GetSourceKind())
	}

	pipeline.AddStage(source)
	pipeline.AddStage(sess)

	return nil
}

func printPlans(cmd *cobra.Command) error {
	file, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	for _, dev := range file.Devices {
		sessCfg, err := dev.SessionConfig()
		if err != nil {
			return err
		}

		sess, err := session.New(connector.NewChannel[[]byte](1), sessCfg)
		if err != nil {
			return err
		}

		plan := sess.Plan()

		fmt.Fprintf(w, "%s\traw %d bytes\taligned %d bytes\n", dev.Name, plan.ExpectedRawLength(), plan.AlignedSize())
		fmt.Fprintln(w, "signal\ttype\toffset\tcount\tcolor")

		for idx, field := range plan.Fields() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				field.Name, field.Datatype, field.Offset, field.Count, sess.Schema().ColorOf(idx))
		}

		fmt.Fprintln(w)
	}

	return w.Flush()
}
