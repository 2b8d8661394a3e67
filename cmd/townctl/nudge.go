package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/anjalik1505/town-functions-sub002/internal/factory"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/nudge"
)

func init() {
	nudgeCmd := &cobra.Command{Use: "nudge", Short: "Nudge scheduler operations"}

	// sweep
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one nudge sweep over the current bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			log := zerolog.New(os.Stderr).With().Timestamp().Logger()
			gw := factory.NewNotifyGateway(cfg, log)
			s := nudge.NewScheduler(st, gw, nudge.Config{}, log)
			if err := s.Sweep(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "swept bucket %s\n", nudge.CurrentKey(time.Now().UTC()))
			return nil
		},
	}
	nudgeCmd.AddCommand(sweepCmd)

	// bucket
	bucketCmd := &cobra.Command{
		Use:   "bucket [KEY]",
		Short: "Show members of a nudge bucket (defaults to the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			key := nudge.CurrentKey(time.Now().UTC())
			if len(args) == 1 {
				key = args[0]
			}
			users, err := st.TimeBuckets().ListUsers(ctx, key)
			if err != nil {
				return err
			}
			out := map[string]interface{}{"bucketKey": key, "users": users, "count": len(users)}
			if tb, err := st.TimeBuckets().Get(ctx, key); err == nil {
				out["lastTouched"] = tb.LastTouched
			} else if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			return printJSON(out)
		},
	}
	nudgeCmd.AddCommand(bucketCmd)

	// key
	var tz string
	var weekday int
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Compute the bucket key for a timezone and weekday",
		RunE: func(cmd *cobra.Command, args []string) error {
			if weekday < 0 || weekday > 6 {
				return fmt.Errorf("--weekday must be 0 (Sunday) through 6 (Saturday)")
			}
			key, err := nudge.BucketKey(tz, time.Weekday(weekday), time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"bucketKey": key})
		},
	}
	keyCmd.Flags().StringVarP(&tz, "timezone", "t", "UTC", "IANA timezone name")
	keyCmd.Flags().IntVarP(&weekday, "weekday", "w", 0, "Weekday 0 (Sunday) through 6 (Saturday)")
	nudgeCmd.AddCommand(keyCmd)

	rootCmd.AddCommand(nudgeCmd)
}
