package command

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"devicecgm/cgmq"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if remote != "" {
			return errors.New("serve answers from the local log and does not take --remote")
		}
		if cmd.Flags().Changed("address") {
			config.HTTP.Address = address
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := cgmq.New(ctx, config)
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		return s.Serve(ctx)
	},
}

var address string

func init() {
	serveCmd.Flags().StringVar(&address, "address", "", "listen address, overrides http.address")
	rootCmd.AddCommand(serveCmd)
}
