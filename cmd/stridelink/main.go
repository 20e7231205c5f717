package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"stridelink/internal/app"
	"stridelink/internal/config"
)

func main() {
	log.SetFlags(0)
	if err := NewStridelinkCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewStridelinkCommand builds the full command tree.
func NewStridelinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stridelink",
		Short:         "Running-coach client: training data, rankings and live expert chat",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(
		newRegisterCommand(),
		newLoginCommand(),
		newLogoutCommand(),
		newProfileCommand(),
		newLeaderboardCommand(),
		newScheduleCommand(),
		newRiskCommand(),
		newRecordCommand(),
		newSessionsCommand(),
		newChatCommand(),
	)

	return cmd
}

// withApp loads configuration, builds the application and tears it down
// after the command body returns.
func withApp(run func(ctx context.Context, application *app.Application, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		application, err := app.NewApplication(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := application.Close(); err != nil {
				log.Printf("shutdown: %v", err)
			}
		}()

		return run(cmd.Context(), application, args)
	}
}
