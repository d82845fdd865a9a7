package session

import (
	"context"
	"fmt"

	"github.com/shortsfeed/shortsfeed/internal/database"
	"github.com/shortsfeed/shortsfeed/internal/device"
)

// Devices records when each device was first and last seen.
type Devices struct {
	db database.DBTX
}

func NewDevices(db database.DBTX) *Devices {
	return &Devices{db: db}
}

func (d *Devices) Touch(ctx context.Context, id string, info device.Info, country string) error {
	_, err := d.db.Exec(ctx,
		`INSERT INTO devices (id, browser, os, class, country)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   browser = EXCLUDED.browser,
		   os = EXCLUDED.os,
		   class = EXCLUDED.class,
		   country = COALESCE(NULLIF(EXCLUDED.country, ''), devices.country),
		   last_seen_at = now()`,
		id, info.Browser, info.OS, info.Class, country,
	)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

func (d *Devices) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRow(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return n, nil
}
