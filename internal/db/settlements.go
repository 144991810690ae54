package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/susu3304/splitbot/internal/settle"
)

// Sources a settlement can come from.
const (
	SourceDiscord = "discord"
	SourceAPI     = "api"
)

type Settlement struct {
	ID          uuid.UUID         `json:"id"`
	GuildID     int64             `json:"guild_id,string"`
	ChannelID   string            `json:"channel_id"`
	RequestedBy string            `json:"requested_by"`
	Source      string            `json:"source"`
	Kind        string            `json:"kind"`
	Share       int64             `json:"share"`
	Individuals int               `json:"individuals"`
	Approximate bool              `json:"approximate"`
	CreatedAt   time.Time         `json:"created_at"`
	Transfers   []settle.Transfer `json:"transfers"`
}

// NewSettlement copies the parts of a result worth keeping.
func NewSettlement(res *settle.Result, source string, guildID int64, channelID, requestedBy string) *Settlement {
	transfers := make([]settle.Transfer, len(res.Transfers))
	copy(transfers, res.Transfers)
	return &Settlement{
		ID:          uuid.New(),
		GuildID:     guildID,
		ChannelID:   channelID,
		RequestedBy: requestedBy,
		Source:      source,
		Kind:        res.Kind.String(),
		Share:       res.Share,
		Individuals: res.Individuals,
		Approximate: res.Approximate,
		Transfers:   transfers,
	}
}

// RecordSettlement stores a settlement and its transfers.
func (db *DB) RecordSettlement(ctx context.Context, s *Settlement) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx,
		`INSERT INTO settlements (id, guild_id, channel_id, requested_by, source, kind, share, individuals, approximate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		s.ID, s.GuildID, s.ChannelID, s.RequestedBy, s.Source, s.Kind, s.Share, s.Individuals, s.Approximate,
	).Scan(&s.CreatedAt); err != nil {
		return err
	}

	for pos, t := range s.Transfers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO settlement_transfers (settlement_id, position, payer, payee, amount)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.ID, pos, t.From, t.To, t.Amount,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListSettlements returns the most recent settlements for a guild, newest first.
func (db *DB) ListSettlements(ctx context.Context, guildID int64, limit int) ([]Settlement, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, guild_id, channel_id, requested_by, source, kind, share, individuals, approximate, created_at
		 FROM settlements
		 WHERE guild_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		guildID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Settlement
	for rows.Next() {
		var s Settlement
		if err := rows.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.RequestedBy, &s.Source, &s.Kind,
			&s.Share, &s.Individuals, &s.Approximate, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		transfers, err := db.SettlementTransfers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Transfers = transfers
	}
	return out, nil
}

// SettlementTransfers returns the transfers of one settlement in their original order.
func (db *DB) SettlementTransfers(ctx context.Context, id uuid.UUID) ([]settle.Transfer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT payer, payee, amount FROM settlement_transfers WHERE settlement_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []settle.Transfer{}
	for rows.Next() {
		var t settle.Transfer
		if err := rows.Scan(&t.From, &t.To, &t.Amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GuildIDsWithHistory returns every guild that has at least one settlement.
func (db *DB) GuildIDsWithHistory(ctx context.Context) ([]int64, error) {
	rows, err := db.pool.Query(ctx, "SELECT DISTINCT guild_id FROM settlements WHERE guild_id <> 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guildIDs []int64
	for rows.Next() {
		var guildID int64
		if err := rows.Scan(&guildID); err != nil {
			return nil, err
		}
		guildIDs = append(guildIDs, guildID)
	}
	return guildIDs, rows.Err()
}
