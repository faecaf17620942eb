package command

import (
	"fmt"
	"os"

	"devicecgm/cgmq"
	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/desc"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var outFile string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write patient reports and readings to an xlsx workbook",
	Long:  "The export command writes one workbook with a Summary sheet and a Measurements sheet, for --patient or for every patient in the log",
	RunE: patientQuery(func(cmd *cobra.Command, q cgmq.Querier, iv *defs.Interval, d *desc.Descriptor) error {
		ids := []int{patientID}
		if !cmd.Flags().Changed("patient") {
			var err error
			if ids, err = q.Patients(cmd.Context()); err != nil {
				return err
			}
		}

		f, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("unable to create %s: %w", outFile, err)
		}
		defer f.Close()

		if err := cgmq.Export(cmd.Context(), q, ids, iv, config.Glucose, d.Loc, f); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("unable to close %s: %w", outFile, err)
		}

		logger.Debug("exported workbook", zap.String("file", outFile), zap.Int("patients", len(ids)))
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d patients to %s\n", len(ids), outFile)
		return nil
	}),
}

func init() {
	exportCmd.Flags().IntVar(&patientID, "patient", 0, "patient id, all patients when unset")
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "cgmq.xlsx", "workbook to write")
	rootCmd.AddCommand(exportCmd)
}
