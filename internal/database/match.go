// internal/database/match.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/mathduel/internal/cache"
	"github.com/jason-s-yu/mathduel/internal/models"
)

// RecordMatchResult upserts the final row for a match.
func RecordMatchResult(ctx context.Context, r models.MatchResult) error {
	status := "terminated"
	if r.Completed() {
		status = "completed"
	}
	q := `
		INSERT INTO matches (
			id, status, first_player, first_name, second_player, second_name,
			winner_role, end_reason, turns, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = $2, first_player = $3, first_name = $4, second_player = $5, second_name = $6,
			winner_role = NULLIF($7, ''), end_reason = $8, turns = $9, end_time = $11
	`
	startedAt := r.StartedAt
	if startedAt.IsZero() {
		startedAt = r.EndedAt
	}
	_, err := DB.Exec(ctx, q,
		r.MatchID, status, r.FirstID, r.FirstName, r.SecondID, r.SecondName,
		r.WinnerRole, r.Reason, r.Turns, startedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("record match %s: %w", r.MatchID, err)
	}
	return nil
}

// InsertMatchActions writes a batch of action records in a single transaction.
func InsertMatchActions(ctx context.Context, records []cache.MatchActionRecord) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertMatchActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of match %s: %w", rec.ActionIndex, rec.MatchID, err)
			}
		}
		return nil
	})
}

// insertMatchActionTx inserts one action and makes sure its match row exists.
// Duplicate deliveries of the same action are ignored.
func insertMatchActionTx(ctx context.Context, tx pgx.Tx, rec cache.MatchActionRecord) error {
	upsertMatchQ := `
		INSERT INTO matches (id, status, start_time)
		VALUES ($1, 'in_progress', $2)
		ON CONFLICT (id) DO NOTHING
	`
	createdAt := time.UnixMilli(rec.Timestamp)
	if _, err := tx.Exec(ctx, upsertMatchQ, rec.MatchID, createdAt); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO match_actions (
			match_id, action_index, actor_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.MatchID, rec.ActionIndex, rec.ActorID, rec.ActionType, payload, createdAt,
	); err != nil {
		return err
	}

	var finalStatus string
	switch rec.ActionType {
	case "match_over":
		finalStatus = "completed"
	case "match_terminated":
		finalStatus = "terminated"
	default:
		return nil
	}
	finalizeQ := `
		UPDATE matches
		SET status = $2, end_time = $3
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err = tx.Exec(ctx, finalizeQ, rec.MatchID, finalStatus, createdAt)
	return err
}

// MarkMatchAbandoned flags a match that is still in progress as abandoned.
// It reports whether a row changed.
func MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) (bool, error) {
	q := `
		UPDATE matches
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	tag, err := DB.Exec(ctx, q, matchID)
	if err != nil {
		return false, fmt.Errorf("mark match %s abandoned: %w", matchID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// History exposes the action-log writes to the historian service.
type History struct{}

func (History) InsertMatchActions(ctx context.Context, records []cache.MatchActionRecord) error {
	return InsertMatchActions(ctx, records)
}

func (History) MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) (bool, error) {
	return MarkMatchAbandoned(ctx, matchID)
}
