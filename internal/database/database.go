package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"acmreport/server/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// GetCachedPhoto returns the stored photo for key, or nil when none is stored.
func (d *Database) GetCachedPhoto(key string) (*models.CachedPhoto, error) {
	var photo models.CachedPhoto
	err := d.db.Where("cache_key = ?", key).First(&photo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached photo: %w", err)
	}
	return &photo, nil
}

// SaveCachedPhoto inserts or replaces the photo stored under its key.
func (d *Database) SaveCachedPhoto(photo *models.CachedPhoto) error {
	if err := d.db.Save(photo).Error; err != nil {
		return fmt.Errorf("failed to save cached photo: %w", err)
	}
	return nil
}

// PurgeCachedPhotos deletes photos resolved before cutoff and returns how many were removed.
func (d *Database) PurgeCachedPhotos(cutoff time.Time) (int64, error) {
	result := d.db.Where("resolved_at < ?", cutoff).Delete(&models.CachedPhoto{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge cached photos: %w", result.Error)
	}
	return result.RowsAffected, nil
}
