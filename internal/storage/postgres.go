// Package storage provides PostgreSQL and Redis clients for persisting
// channel, share, and block-found records.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sv2pool/core/internal/config"
)

// PostgresClient wraps PostgreSQL operations for the Sv2 server.
type PostgresClient struct {
	pool   *pgxpool.Pool
	cfg    config.PostgresConfig
	logger *zap.Logger
}

// Channel represents a hosted channel's identity record.
type Channel struct {
	ID           int64
	ChannelID    uint32
	UserIdentity string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

// Share represents a share record in the database.
type Share struct {
	ID             int64
	ChannelID      uint32
	JobID          uint32
	SequenceNumber uint32
	Difficulty     float64
	ShareDiff      float64
	Valid          bool
	IsBlock        bool
	BlockHash      string
	RejectReason   string
	IPAddress      string
	SubmittedAt    time.Time
}

// Block represents a block-found record.
type Block struct {
	ID        int64
	Hash      string
	TemplateID uint64
	ChannelID uint32
	Difficulty float64
	FoundAt   time.Time
	Confirmed bool
}

// NewPostgresClient creates a new PostgreSQL client and initializes its
// schema.
func NewPostgresClient(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*PostgresClient, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password,
		cfg.MaxConnections, cfg.MinConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	client := &PostgresClient{pool: pool, cfg: cfg, logger: logger.Named("postgres")}

	if err := client.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return client, nil
}

// Close closes the database connection pool.
func (p *PostgresClient) Close() {
	p.pool.Close()
}

func (p *PostgresClient) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sv2_channels (
			id BIGSERIAL PRIMARY KEY,
			channel_id BIGINT UNIQUE NOT NULL,
			user_identity VARCHAR(255) NOT NULL,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_sv2_channels_identity ON sv2_channels(user_identity);
		CREATE INDEX IF NOT EXISTS idx_sv2_channels_last_seen ON sv2_channels(last_seen_at);

		CREATE TABLE IF NOT EXISTS sv2_shares (
			id BIGSERIAL PRIMARY KEY,
			channel_id BIGINT NOT NULL,
			job_id BIGINT NOT NULL,
			sequence_number BIGINT NOT NULL,
			difficulty DOUBLE PRECISION NOT NULL,
			share_diff DOUBLE PRECISION NOT NULL DEFAULT 0,
			valid BOOLEAN NOT NULL DEFAULT FALSE,
			is_block BOOLEAN NOT NULL DEFAULT FALSE,
			block_hash VARCHAR(64),
			reject_reason VARCHAR(255),
			ip_address VARCHAR(45),
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_sv2_shares_channel ON sv2_shares(channel_id);
		CREATE INDEX IF NOT EXISTS idx_sv2_shares_submitted ON sv2_shares(submitted_at);
		CREATE INDEX IF NOT EXISTS idx_sv2_shares_valid ON sv2_shares(valid);
		CREATE INDEX IF NOT EXISTS idx_sv2_shares_block ON sv2_shares(is_block) WHERE is_block = TRUE;

		CREATE TABLE IF NOT EXISTS sv2_blocks (
			id BIGSERIAL PRIMARY KEY,
			hash VARCHAR(64) UNIQUE NOT NULL,
			template_id BIGINT NOT NULL,
			channel_id BIGINT NOT NULL,
			difficulty DOUBLE PRECISION NOT NULL,
			found_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			confirmed_at TIMESTAMPTZ,
			orphaned BOOLEAN NOT NULL DEFAULT FALSE,
			reward BIGINT
		);

		CREATE INDEX IF NOT EXISTS idx_sv2_blocks_template ON sv2_blocks(template_id);
		CREATE INDEX IF NOT EXISTS idx_sv2_blocks_channel ON sv2_blocks(channel_id);
		CREATE INDEX IF NOT EXISTS idx_sv2_blocks_confirmed ON sv2_blocks(confirmed);
	`

	_, err := p.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertChannel inserts or updates a channel identity record.
func (p *PostgresClient) UpsertChannel(ctx context.Context, ch *Channel) error {
	query := `
		INSERT INTO sv2_channels (channel_id, user_identity, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = NOW()
	`
	_, err := p.pool.Exec(ctx, query, ch.ChannelID, ch.UserIdentity, ch.FirstSeenAt, ch.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}
	return nil
}

// GetChannel retrieves a channel record by channel ID.
func (p *PostgresClient) GetChannel(ctx context.Context, channelID uint32) (*Channel, error) {
	query := `SELECT id, channel_id, user_identity, first_seen_at, last_seen_at FROM sv2_channels WHERE channel_id = $1`

	var ch Channel
	err := p.pool.QueryRow(ctx, query, channelID).Scan(
		&ch.ID, &ch.ChannelID, &ch.UserIdentity, &ch.FirstSeenAt, &ch.LastSeenAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &ch, nil
}

// InsertShare inserts a share record.
func (p *PostgresClient) InsertShare(ctx context.Context, share *Share) error {
	query := `
		INSERT INTO sv2_shares (channel_id, job_id, sequence_number, difficulty, share_diff, valid, is_block, block_hash, reject_reason, ip_address, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := p.pool.Exec(ctx, query,
		share.ChannelID, share.JobID, share.SequenceNumber, share.Difficulty, share.ShareDiff,
		share.Valid, share.IsBlock, share.BlockHash, share.RejectReason,
		share.IPAddress, share.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

// GetChannelShareStats retrieves share statistics for a channel.
func (p *PostgresClient) GetChannelShareStats(ctx context.Context, channelID uint32, since time.Time) (valid, invalid, stale int64, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE valid = TRUE) as valid_shares,
			COUNT(*) FILTER (WHERE valid = FALSE AND reject_reason NOT LIKE '%stale%') as invalid_shares,
			COUNT(*) FILTER (WHERE valid = FALSE AND reject_reason LIKE '%stale%') as stale_shares
		FROM sv2_shares
		WHERE channel_id = $1 AND submitted_at >= $2
	`
	err = p.pool.QueryRow(ctx, query, channelID, since).Scan(&valid, &invalid, &stale)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get share stats: %w", err)
	}
	return valid, invalid, stale, nil
}

// InsertBlock inserts a block-found record.
func (p *PostgresClient) InsertBlock(ctx context.Context, block *Block) error {
	query := `
		INSERT INTO sv2_blocks (hash, template_id, channel_id, difficulty, found_at, confirmed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := p.pool.Exec(ctx, query,
		block.Hash, block.TemplateID, block.ChannelID, block.Difficulty,
		block.FoundAt, block.Confirmed)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

// ConfirmBlock marks a block as confirmed with its final reward.
func (p *PostgresClient) ConfirmBlock(ctx context.Context, hash string, reward int64) error {
	query := `UPDATE sv2_blocks SET confirmed = TRUE, confirmed_at = NOW(), reward = $2 WHERE hash = $1`
	_, err := p.pool.Exec(ctx, query, hash, reward)
	if err != nil {
		return fmt.Errorf("failed to confirm block: %w", err)
	}
	return nil
}

// OrphanBlock marks a block as orphaned.
func (p *PostgresClient) OrphanBlock(ctx context.Context, hash string) error {
	query := `UPDATE sv2_blocks SET orphaned = TRUE WHERE hash = $1`
	_, err := p.pool.Exec(ctx, query, hash)
	if err != nil {
		return fmt.Errorf("failed to orphan block: %w", err)
	}
	return nil
}

// GetRecentBlocks retrieves the most recently found blocks.
func (p *PostgresClient) GetRecentBlocks(ctx context.Context, limit int) ([]*Block, error) {
	query := `
		SELECT id, hash, template_id, channel_id, difficulty, found_at, confirmed
		FROM sv2_blocks
		ORDER BY found_at DESC
		LIMIT $1
	`
	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		var block Block
		if err := rows.Scan(&block.ID, &block.Hash, &block.TemplateID, &block.ChannelID,
			&block.Difficulty, &block.FoundAt, &block.Confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, &block)
	}
	return blocks, nil
}

// CleanupOldShares removes share records older than olderThan.
func (p *PostgresClient) CleanupOldShares(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	query := `DELETE FROM sv2_shares WHERE submitted_at < $1`

	result, err := p.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old shares: %w", err)
	}
	return result.RowsAffected(), nil
}
