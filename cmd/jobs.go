package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyama86/dispatchd/handler"
	"github.com/pyama86/dispatchd/jobs"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "periodic dispatch jobs",
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "run a periodic job once",
	Long: "run a periodic job once. available jobs: " + strings.Join([]string{
		jobs.NeedToOpenNotification,
		jobs.CheckMissingDuties,
		jobs.EnsureWeekendDuties,
	}, ", "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()
		app, err := handler.OpenApp(configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		app.Dispatcher.Start(ctx)
		defer app.Dispatcher.Stop()

		runner, err := jobs.NewDispatchRunner(app.Config.Location(), app.Config.Jobs, app.Monitor, app.Coverage)
		if err != nil {
			return err
		}
		if err := runner.Run(ctx, args[0]); err != nil {
			return fmt.Errorf("job %s failed: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}
