package command

import (
	"fmt"

	"devicecgm/cgmq"
	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/desc"

	"github.com/spf13/cobra"
)

var (
	showEpisodes bool
	lowFlag      float64
	highFlag     float64
)

// patientQuery runs fn with a querier, the requested interval and a
// descriptor for the configured timezone.
func patientQuery(fn func(cmd *cobra.Command, q cgmq.Querier, iv *defs.Interval, d *desc.Descriptor) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		iv, err := interval()
		if err != nil {
			return err
		}
		d, err := descriptor()
		if err != nil {
			return err
		}

		q, done, err := querier(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		return fn(cmd, q, iv, d)
	}
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Minimum, maximum and median glucose of a patient",
	RunE: patientQuery(func(cmd *cobra.Command, q cgmq.Querier, iv *defs.Interval, d *desc.Descriptor) error {
		ss, err := q.MinMaxMedian(cmd.Context(), patientID, iv)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d.Summary(patientID, ss))
		return nil
	}),
}

var measurementsCmd = &cobra.Command{
	Use:   "measurements",
	Short: "Glucose readings of a patient in time order",
	RunE: patientQuery(func(cmd *cobra.Command, q cgmq.Querier, iv *defs.Interval, d *desc.Descriptor) error {
		ms, err := q.OrderedMeasurements(cmd.Context(), patientID, iv)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d.Measurements(ms))
		return nil
	}),
}

var hypoCmd = &cobra.Command{
	Use:   "hypo",
	Short: "Count hypoglycemic episodes of a patient",
	Long:  "The hypo command counts runs of readings below 70 mg/dL lasting at least 15 minutes",
	RunE: patientQuery(func(cmd *cobra.Command, q cgmq.Querier, iv *defs.Interval, d *desc.Descriptor) error {
		if showEpisodes {
			eps, err := q.HypoEpisodes(cmd.Context(), patientID, iv)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), d.Episodes(patientID, eps))
			return nil
		}

		n, err := q.HypoEventsCount(cmd.Context(), patientID, iv)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
		return nil
	}),
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summary, time in range and hypo episodes of a patient",
	RunE: patientQuery(func(cmd *cobra.Command, q cgmq.Querier, iv *defs.Interval, d *desc.Descriptor) error {
		low, high := config.Glucose.Low, config.Glucose.High
		if cmd.Flags().Changed("low") {
			low = lowFlag
		}
		if cmd.Flags().Changed("high") {
			high = highFlag
		}
		if low >= high {
			return fmt.Errorf("--low %.1f must be below --high %.1f", low, high)
		}

		r, err := q.Report(cmd.Context(), patientID, iv, low, high)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d.Report(r))
		return nil
	}),
}

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "List the patients present in the log",
	RunE: patientQuery(func(cmd *cobra.Command, q cgmq.Querier, _ *defs.Interval, d *desc.Descriptor) error {
		ids, err := q.Patients(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d.Patients(ids))
		return nil
	}),
}

func init() {
	for _, cmd := range []*cobra.Command{summaryCmd, measurementsCmd, hypoCmd, reportCmd} {
		addPatientFlag(cmd)
	}
	hypoCmd.Flags().BoolVar(&showEpisodes, "episodes", false, "list each episode instead of the count")
	reportCmd.Flags().Float64Var(&lowFlag, "low", defs.DefaultLow, "lower bound of the target range")
	reportCmd.Flags().Float64Var(&highFlag, "high", defs.DefaultHigh, "upper bound of the target range")

	rootCmd.AddCommand(summaryCmd, measurementsCmd, hypoCmd, reportCmd, patientsCmd)
}
