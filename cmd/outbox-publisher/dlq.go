package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
)

type dlqAdmin interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

func listDeadLetters(ctx context.Context, repo dlqAdmin, limit int, out io.Writer) error {
	rows, err := repo.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dlq: %w", err)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT ID\tTYPE\tAGGREGATE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			row.EventID, row.EventType, row.AggregateID, row.ErrorReason,
			row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339), msg)
	}
	return w.Flush()
}

func replayDeadLetter(ctx context.Context, repo dlqAdmin, rawID string, out io.Writer) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", rawID, err)
	}
	entry, err := repo.Replay(ctx, eventID)
	if err != nil {
		return fmt.Errorf("replay %s: %w", eventID, err)
	}
	fmt.Fprintf(out, "requeued %s (%s, was %s)\n", entry.EventID, entry.EventType, entry.ErrorReason)
	return nil
}
