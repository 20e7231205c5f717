package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stridelink/internal/api"
	"stridelink/internal/app"
	"stridelink/pkg/types"
)

func newRegisterCommand() *cobra.Command {
	var role string
	var displayName string

	cmd := &cobra.Command{
		Use:   "register <user-id> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			if !types.IsValidUserID(args[0]) {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if role != types.RoleRunner && role != types.RoleExpert {
				return fmt.Errorf("role must be %q or %q", types.RoleRunner, types.RoleExpert)
			}
			if displayName == "" {
				displayName = args[0]
			}
			err := application.Client().Register(ctx, api.RegisterRequest{
				UserID:      args[0],
				Password:    args[1],
				DisplayName: displayName,
				Role:        role,
			})
			if err != nil {
				return err
			}
			fmt.Println("Account created. Run `stridelink login` to sign in.")
			return nil
		}),
	}

	cmd.Flags().StringVar(&role, "role", types.RoleRunner, "account role: runner or expert")
	cmd.Flags().StringVar(&displayName, "name", "", "display name (defaults to the user id)")
	return cmd
}

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id> <password>",
		Short: "Sign in and save the session locally",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			creds, err := application.Client().Login(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err := application.SetSelf(ctx, creds); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s).\n", creds.DisplayName, creds.Role)
			return nil
		}),
	}
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the saved session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			if err := application.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		}),
	}
}

func newProfileCommand() *cobra.Command {
	var height, weight float64
	var level, goal string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			client := application.Client()

			if height > 0 || weight > 0 || level != "" || goal != "" {
				update := api.ProfileUpdate{Height: height, Weight: weight, RunningLevel: level, Goal: goal}
				if err := client.UpdateProfile(ctx, update); err != nil {
					return err
				}
			}

			profile, err := client.Profile(ctx)
			if err != nil {
				return err
			}
			if self := application.Self(); self != nil {
				// Refresh the offline copy whenever the live one loads.
				if err := application.Store().CacheProfile(ctx, self.UserID, profile); err != nil {
					return err
				}
			}

			fmt.Printf("%s (%s)\n", profile.DisplayName, profile.Role)
			fmt.Printf("  height: %.0f cm  weight: %.1f kg\n", profile.Height, profile.Weight)
			fmt.Printf("  level:  %s\n", profile.RunningLevel)
			fmt.Printf("  goal:   %s\n", profile.Goal)
			fmt.Printf("  points: %d\n", profile.Points)
			return nil
		}),
	}

	cmd.Flags().Float64Var(&height, "height", 0, "height in cm")
	cmd.Flags().Float64Var(&weight, "weight", 0, "weight in kg")
	cmd.Flags().StringVar(&level, "level", "", "running level")
	cmd.Flags().StringVar(&goal, "goal", "", "training goal")
	return cmd
}

func newLeaderboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the points ranking",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			entries, err := application.Client().Leaderboard(ctx)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Printf("%3d. %-20s %6d pts\n", entry.Rank, entry.DisplayName, entry.Points)
			}
			return nil
		}),
	}
}

func newScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Show upcoming training slots",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			items, err := application.Client().Schedule(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("Nothing scheduled.")
				return nil
			}
			for _, item := range items {
				fmt.Printf("%s  %s (%s)\n", item.StartsAt.Local().Format("Mon 02 Jan 15:04"), item.Title, item.Location)
			}
			return nil
		}),
	}
}

func newRiskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "risk",
		Short: "Show the injury-risk analysis",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			report, err := application.Client().RiskAnalysis(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Risk level: %s\n%s\n", report.Level, report.Summary)
			for _, factor := range report.Factors {
				fmt.Printf("  - %s\n", factor)
			}
			return nil
		}),
	}
}

func newRecordCommand() *cobra.Command {
	var distance, calories float64
	var steps, minHeart, maxHeart int
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Upload a finished run",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			if distance <= 0 {
				return fmt.Errorf("distance must be positive")
			}
			ended := time.Now()
			record := types.RunRecordSnapshot{
				Distance:  distance,
				Calories:  calories,
				Steps:     steps,
				MinHeart:  minHeart,
				MaxHeart:  maxHeart,
				StartedAt: ended.Add(-duration),
				EndedAt:   ended,
			}
			if err := application.Client().SubmitRunRecord(ctx, record); err != nil {
				return err
			}
			fmt.Printf("Recorded %.2f km.\n", distance)
			return nil
		}),
	}

	cmd.Flags().Float64Var(&distance, "distance", 0, "distance in km")
	cmd.Flags().Float64Var(&calories, "calories", 0, "calories burned")
	cmd.Flags().IntVar(&steps, "steps", 0, "step count")
	cmd.Flags().IntVar(&minHeart, "min-heart", 0, "minimum heart rate")
	cmd.Flags().IntVar(&maxHeart, "max-heart", 0, "maximum heart rate")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Minute, "run duration")
	return cmd
}
