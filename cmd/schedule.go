package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/handler"
	"github.com/spf13/cobra"
)

var scheduleOpts struct {
	roleID   int64
	userID   int64
	start    string
	end      string
	dutyStep int
	restStep int
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "assign a user to a duty role for a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()
		app, err := handler.OpenApp(configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app.Dispatcher.Start(ctx)
		defer app.Dispatcher.Stop()

		cal := app.Duties.Calendar()
		start, err := cal.ParseDate(scheduleOpts.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		req := duty.AssignRequest{
			RoleID:    scheduleOpts.roleID,
			UserID:    scheduleOpts.userID,
			StartDate: start,
			DutyStep:  scheduleOpts.dutyStep,
			RestStep:  scheduleOpts.restStep,
		}
		if scheduleOpts.end != "" {
			if req.EndDate, err = cal.ParseDate(scheduleOpts.end); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
		}

		res, err := app.Scheduler.Assign(ctx, req)
		if err != nil {
			return err
		}
		slog.Info("Duties scheduled",
			slog.Int64("role_id", req.RoleID),
			slog.Int64("user_id", req.UserID),
			slog.Int("created", len(res.Created)),
			slog.Int("overwritten", len(res.Overwritten)),
		)
		for _, d := range res.Duties() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", d.Date, d.ID)
		}
		return nil
	},
}

var clearOpts struct {
	roleID int64
	start  string
	end    string
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "delete duties of a role for a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()
		app, err := handler.OpenApp(configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		cal := app.Duties.Calendar()
		start, err := cal.ParseDate(clearOpts.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end := start
		if clearOpts.end != "" {
			if end, err = cal.ParseDate(clearOpts.end); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
		}
		n, err := app.Scheduler.Clear(context.Background(), clearOpts.roleID, start, end)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d duties\n", n)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().Int64Var(&scheduleOpts.roleID, "role", 0, "duty role id")
	scheduleCmd.Flags().Int64Var(&scheduleOpts.userID, "user", 0, "user id")
	scheduleCmd.Flags().StringVar(&scheduleOpts.start, "start", "", "first date (YYYY-MM-DD)")
	scheduleCmd.Flags().StringVar(&scheduleOpts.end, "end", "", "last date (YYYY-MM-DD), defaults to --start")
	scheduleCmd.Flags().IntVar(&scheduleOpts.dutyStep, "duty-step", 1, "consecutive duty days")
	scheduleCmd.Flags().IntVar(&scheduleOpts.restStep, "rest-step", 0, "rest days between duty steps")
	_ = scheduleCmd.MarkFlagRequired("role")
	_ = scheduleCmd.MarkFlagRequired("user")
	_ = scheduleCmd.MarkFlagRequired("start")

	clearCmd.Flags().Int64Var(&clearOpts.roleID, "role", 0, "duty role id")
	clearCmd.Flags().StringVar(&clearOpts.start, "start", "", "first date (YYYY-MM-DD)")
	clearCmd.Flags().StringVar(&clearOpts.end, "end", "", "last date (YYYY-MM-DD), defaults to --start")
	_ = clearCmd.MarkFlagRequired("role")
	_ = clearCmd.MarkFlagRequired("start")

	rootCmd.AddCommand(scheduleCmd, clearCmd)
}
