package command

import (
	"context"
	"fmt"
	"os"

	"devicecgm/cgmq"
	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/client"
	"devicecgm/cgmq/pkg/desc"
	"devicecgm/cgmq/pkg/record"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	remote     string
	patientID  int
	startFlag  string
	endFlag    string

	config defs.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "cgmq",
	Short:         "Query continuous glucose monitor record logs",
	Long:          "cgmq answers per-patient glucose queries over a |-delimited CGM record log, locally or through a cgmq server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = defs.LoadConfig(configFile)
		if err != nil {
			return err
		}

		logger, err = newLogger(config.Log)
		if err != nil {
			return err
		}
		config.Logger = logger

		logger.Debug("loaded config", zap.String("file", configFile), zap.String("remote", remote))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "", "config file")
	rootCmd.PersistentFlags().StringVar(&remote, "remote", "", "base url of a cgmq server to query instead of the local log")
	rootCmd.PersistentFlags().StringVar(&startFlag, "start", "", "interval start, as "+record.DeviceLayout.Pattern)
	rootCmd.PersistentFlags().StringVar(&endFlag, "end", "", "interval end, as "+record.DeviceLayout.Pattern)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(lc defs.LogConfig) (*zap.Logger, error) {
	if !lc.Production {
		return zap.NewDevelopment()
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("unable to parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func addPatientFlag(cmd *cobra.Command) {
	cmd.Flags().IntVar(&patientID, "patient", 0, "patient id")
	_ = cmd.MarkFlagRequired("patient")
}

// querier returns the remote client when --remote is set and a local engine
// otherwise. The returned func releases what the querier holds.
func querier(ctx context.Context) (cgmq.Querier, func(), error) {
	if remote != "" {
		return client.New(remote, logger), func() {}, nil
	}

	s, err := cgmq.New(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	return s.Engine, func() {
		if err := s.Close(context.Background()); err != nil {
			logger.Debug("unable to close server", zap.Error(err))
		}
	}, nil
}

func interval() (*defs.Interval, error) {
	return parseInterval(startFlag, endFlag)
}

func parseInterval(start, end string) (*defs.Interval, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("--start and --end must be given together")
	}

	s, err := record.DeviceLayout.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("unable to parse --start: %w", err)
	}
	e, err := record.DeviceLayout.Parse(end)
	if err != nil {
		return nil, fmt.Errorf("unable to parse --end: %w", err)
	}
	return defs.NewInterval(s, e)
}

func descriptor() (*desc.Descriptor, error) {
	loc, err := cgmq.Location(config.Timezone)
	if err != nil {
		return nil, err
	}
	return desc.New(loc), nil
}
