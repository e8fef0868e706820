package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/store"
)

func seedExportData(t *testing.T) (*store.MemoryStore, time.Time) {
	t.Helper()
	mem := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, mem.SaveUser(ctx, &models.User{
		ID:       "u1",
		TimeZone: "America/New_York",
		Address:  "350 5th Ave, New York, NY",
		ZipCode:  "10118",
	}))

	base := time.Date(2015, time.March, 1, 17, 30, 0, 0, time.UTC) // 12:30 EST
	outdoor := 30.5
	require.NoError(t, mem.SaveReading(ctx, &models.Reading{
		ID:          "r1",
		SensorID:    "sensor-1",
		UserID:      "u1",
		IndoorTemp:  65,
		OutdoorTemp: &outdoor,
		Violation:   true,
		CreatedAt:   base,
		TimeZone:    "America/New_York",
	}))
	require.NoError(t, mem.SaveReading(ctx, &models.Reading{
		ID:         "r2",
		SensorID:   "sensor-1",
		UserID:     "u1",
		IndoorTemp: 70,
		CreatedAt:  base.Add(time.Hour),
		TimeZone:   "America/New_York",
	}))
	return mem, base
}

func TestWriteCSV(t *testing.T) {
	mem, base := seedExportData(t)
	e := NewExporter(mem, mem)

	var buf bytes.Buffer
	err := e.WriteCSV(context.Background(), &buf, base.Add(-time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows

	assert.Equal(t, Headers, records[0])

	// First row: enriched, violating reading rendered in local time.
	assert.Equal(t, []string{
		"2015-03-01", "12:30:00", "-0500", "65.0", "30.5", "true",
		"sensor-1", "350 5th Ave, New York, NY", "10118",
	}, records[1])

	// Second row: unenriched reading has an empty outdoor column.
	assert.Equal(t, "", records[2][4])
	assert.Equal(t, "false", records[2][5])
}

func TestWriteCSV_RangeFilter(t *testing.T) {
	mem, base := seedExportData(t)
	e := NewExporter(mem, mem)

	// Half-open interval excludes the second reading.
	var buf bytes.Buffer
	err := e.WriteCSV(context.Background(), &buf, base, base.Add(time.Hour))
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2) // header + 1 row
}

func TestWriteCSV_EmptyRange(t *testing.T) {
	mem, base := seedExportData(t)
	e := NewExporter(mem, mem)

	var buf bytes.Buffer
	err := e.WriteCSV(context.Background(), &buf, base.Add(24*time.Hour), base.Add(48*time.Hour))
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1) // header only
}

func TestWriteXLSX(t *testing.T) {
	mem, base := seedExportData(t)
	e := NewExporter(mem, mem)

	var buf bytes.Buffer
	err := e.WriteXLSX(context.Background(), &buf, base.Add(-time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)

	// XLSX files are zip archives.
	assert.Equal(t, []byte{'P', 'K'}, buf.Bytes()[:2])
}
