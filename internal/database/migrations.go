package database

import "acmreport/server/internal/models"

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&models.CachedPhoto{}); err != nil {
		return err
	}

	return d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cached_photos_resolved_at
		ON cached_photos(resolved_at);
	`).Error
}
