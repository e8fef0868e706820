// Package export renders the readings reporting view consumed by
// operators: one row per reading with its owner's address attached.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/store"
)

// Headers is the fixed column order of the export.
var Headers = []string{
	"date",
	"time",
	"time_zone",
	"temp_inside",
	"temp_outside",
	"in_violation",
	"sensor_id",
	"address",
	"zip_code",
}

// Exporter produces tabular exports of readings in a time range.
type Exporter struct {
	readings store.ReadingStore
	users    store.UserStore
}

// NewExporter creates an Exporter.
func NewExporter(readings store.ReadingStore, users store.UserStore) *Exporter {
	return &Exporter{readings: readings, users: users}
}

// WriteCSV writes all readings with start <= CreatedAt < end as CSV,
// header row first, ordered by CreatedAt ascending.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer, start, end time.Time) error {
	rows, err := e.rows(ctx, start, end)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same projection as a single-sheet workbook.
func (e *Exporter) WriteXLSX(ctx context.Context, w io.Writer, start, end time.Time) error {
	rows, err := e.rows(ctx, start, end)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Readings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) rows(ctx context.Context, start, end time.Time) ([][]string, error) {
	readings, err := e.readings.ReadingsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}

	users := make(map[string]models.User)
	rows := make([][]string, 0, len(readings))

	for _, r := range readings {
		user, ok := users[r.UserID]
		if !ok {
			u, err := e.users.UserByID(ctx, r.UserID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to load user %s: %w", r.UserID, err)
			}
			user = u
			users[r.UserID] = u
		}
		rows = append(rows, rowValues(r, user))
	}
	return rows, nil
}

func rowValues(r models.Reading, user models.User) []string {
	local := r.CreatedAt.In(r.Zone())

	outdoor := ""
	if r.OutdoorTemp != nil {
		outdoor = strconv.FormatFloat(*r.OutdoorTemp, 'f', 1, 64)
	}

	return []string{
		local.Format("2006-01-02"),
		local.Format("15:04:05"),
		local.Format("-0700"),
		strconv.FormatFloat(r.IndoorTemp, 'f', 1, 64),
		outdoor,
		strconv.FormatBool(r.Violation),
		r.SensorID,
		user.Address,
		user.ZipCode,
	}
}
