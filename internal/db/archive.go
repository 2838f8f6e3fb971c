// Package db records emitted point clouds to a local sqlite database so a
// capture session can be replayed or inspected offline.
package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/pointcloud"
)

// Archive stores clouds for one capture session. Each process run gets its
// own session ID so interleaved captures remain distinguishable.
type Archive struct {
	db      *sql.DB
	session string
}

// NewArchive opens (creating if needed) the archive database at path.
func NewArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS clouds (
			cloud_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id        TEXT,
			frame_number      BIGINT,
			frame_id          TEXT,
			stamp             TIMESTAMP,
			num_points        BIGINT,
			mean_intensity    DOUBLE,
			max_range         DOUBLE
		);
		CREATE TABLE IF NOT EXISTS points (
			cloud_id          INTEGER,
			x                 DOUBLE,
			y                 DOUBLE,
			z                 DOUBLE,
			intensity         DOUBLE,
			range_m           DOUBLE,
			doppler_mps       DOUBLE,
			FOREIGN KEY(cloud_id) REFERENCES clouds(cloud_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{db: db, session: uuid.NewString()}, nil
}

// RecordCloud inserts the cloud and its points in one transaction.
func (a *Archive) RecordCloud(c *pointcloud.Cloud) error {
	summary := pointcloud.Summarize(c)

	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO clouds (session_id, frame_number, frame_id, stamp, num_points, mean_intensity, max_range)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.session, c.FrameNumber, c.FrameID, c.Stamp, summary.NumPoints, summary.MeanIntensity, summary.MaxRange,
	)
	if err != nil {
		return fmt.Errorf("insert cloud for frame %d: %w", c.FrameNumber, err)
	}
	cloudID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, p := range c.Points {
		if _, err := tx.Exec(
			`INSERT INTO points (cloud_id, x, y, z, intensity, range_m, doppler_mps) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cloudID, p.X, p.Y, p.Z, p.Intensity, p.Range, p.Doppler,
		); err != nil {
			return fmt.Errorf("insert point for frame %d: %w", c.FrameNumber, err)
		}
	}

	return tx.Commit()
}

// Publish implements the pipeline's Publisher interface; insert failures are
// logged and never propagate into the sorter.
func (a *Archive) Publish(c *pointcloud.Cloud) {
	if err := a.RecordCloud(c); err != nil {
		monitoring.Logf("archive: failed to record frame %d: %v", c.FrameNumber, err)
	}
}

// Session returns the capture session identifier.
func (a *Archive) Session() string {
	return a.session
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
