package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
)

// eventView renders the raw payload inline instead of base64.
type eventView struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	AggregateID   string          `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	AttemptCount  int             `json:"attemptCount"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func viewOf(e *model.Event) eventView {
	return eventView{
		ID:            e.ID,
		Type:          e.Type,
		AggregateID:   e.AggregateID,
		Payload:       json.RawMessage(e.Payload),
		Status:        e.Status,
		AttemptCount:  e.AttemptCount,
		NextAttemptAt: e.NextAttemptAt,
		CreatedAt:     e.CreatedAt,
	}
}

func init() {
	eventsCmd := &cobra.Command{Use: "events", Short: "Trigger queue operations"}

	// list
	var status string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List queued events by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != model.EventPending && status != model.EventDone && status != model.EventDead {
				return fmt.Errorf("--status must be pending, done or dead")
			}
			ctx := context.Background()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			es, err := st.Events().ListByStatus(ctx, status, limit)
			if err != nil {
				return err
			}
			views := make([]eventView, 0, len(es))
			for _, e := range es {
				views = append(views, viewOf(e))
			}
			return printJSON(map[string]interface{}{"events": views, "count": len(views)})
		},
	}
	listCmd.Flags().StringVarP(&status, "status", "s", "dead", "Event status (pending|done|dead)")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Max events to return")
	eventsCmd.AddCommand(listCmd)

	// counts
	countsCmd := &cobra.Command{
		Use:   "counts",
		Short: "Show event counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			counts, err := st.Events().Counts(ctx)
			if err != nil {
				return err
			}
			return printJSON(counts)
		},
	}
	eventsCmd.AddCommand(countsCmd)

	// requeue
	requeueCmd := &cobra.Command{
		Use:   "requeue EVENT_ID...",
		Short: "Put events back in the pending queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid event id %q", arg)
				}
				if err := st.Events().Requeue(ctx, id); err != nil {
					return fmt.Errorf("requeue %d: %w", id, err)
				}
				_, _ = fmt.Fprintf(os.Stdout, "requeued %d\n", id)
			}
			return nil
		},
	}
	eventsCmd.AddCommand(requeueCmd)

	// retry-dead
	retryDeadCmd := &cobra.Command{
		Use:   "retry-dead",
		Short: "Requeue every dead event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			requeued := 0
			// Dead events stay dead until requeued, so a fixed-size page
			// drained in a loop covers any backlog.
			for {
				es, err := st.Events().ListByStatus(ctx, model.EventDead, 100)
				if err != nil {
					return err
				}
				if len(es) == 0 {
					break
				}
				for _, e := range es {
					if err := st.Events().Requeue(ctx, e.ID); err != nil {
						return fmt.Errorf("requeue %d: %w", e.ID, err)
					}
					requeued++
				}
			}
			_, _ = fmt.Fprintf(os.Stdout, "requeued %d dead events\n", requeued)
			return nil
		},
	}
	eventsCmd.AddCommand(retryDeadCmd)

	rootCmd.AddCommand(eventsCmd)
}
