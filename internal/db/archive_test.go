package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annzb/mmwave/internal/pointcloud"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "clouds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchiveRecordCloud(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t)
	cloud := pointcloud.NewCloud(9, []pointcloud.RadarPoint{
		{X: 1, Y: -0.5, Z: 0.2, Intensity: 18, Range: 1.1, Doppler: -0.3},
		{X: 2, Y: 0.5, Z: 0.1, Intensity: 22, Range: 2.2, Doppler: 0.4},
	})
	require.NoError(t, a.RecordCloud(cloud))

	var numClouds, numPoints int
	require.NoError(t, a.db.QueryRow(`SELECT COUNT(*) FROM clouds`).Scan(&numClouds))
	require.NoError(t, a.db.QueryRow(`SELECT COUNT(*) FROM points`).Scan(&numPoints))
	assert.Equal(t, 1, numClouds)
	assert.Equal(t, 2, numPoints)

	var frameNumber int
	var session string
	require.NoError(t, a.db.QueryRow(`SELECT frame_number, session_id FROM clouds`).Scan(&frameNumber, &session))
	assert.Equal(t, 9, frameNumber)
	assert.Equal(t, a.Session(), session)
}

func TestArchiveSessionsDiffer(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t)
	b := newTestArchive(t)
	assert.NotEqual(t, a.Session(), b.Session())
	assert.NotEmpty(t, a.Session())
}

func TestArchivePublishSwallowsErrors(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t)
	require.NoError(t, a.Close())

	// Publishing after close must only log, never panic.
	a.Publish(pointcloud.NewCloud(1, nil))
}
