package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/model"
)

type DownloadLinkStore struct {
	db *sqlx.DB
}

func NewDownloadLinkStore(db *sqlx.DB) *DownloadLinkStore {
	return &DownloadLinkStore{db: db}
}

const downloadLinkCols = `id, plugin_id, version, account_id, ip_address, available, created_at, consumed_at`

func (s *DownloadLinkStore) Create(ctx context.Context, l *model.DownloadLink) (*model.DownloadLink, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO download_links (id, plugin_id, version, account_id, ip_address, available, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		l.ID, l.PluginID, l.Version, l.AccountID, l.IPAddress, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert download link: %w", err)
	}
	return s.GetByID(ctx, l.ID)
}

func (s *DownloadLinkStore) GetByID(ctx context.Context, id string) (*model.DownloadLink, error) {
	var l model.DownloadLink
	err := s.db.GetContext(ctx, &l, `SELECT `+downloadLinkCols+` FROM download_links WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download link: %w", err)
	}
	return &l, nil
}

// Consume marks the link used. It reports false when the link was already
// consumed or no longer exists, so only one caller can win.
func (s *DownloadLinkStore) Consume(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE download_links SET available = 0, consumed_at = ? WHERE id = ? AND available = 1`,
		now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("consume download link: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteUnusedBefore removes links that were never redeemed and were created
// before the cutoff.
func (s *DownloadLinkStore) DeleteUnusedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM download_links WHERE available = 1 AND created_at < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale download links: %w", err)
	}
	return result.RowsAffected()
}
