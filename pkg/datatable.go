package fiberconv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"
)

const (
	sessionsSheetName = "Sessions"
	miceSheetName     = "Mice"
)

// SessionRow is one row of the Sessions sheet of the lab's data table. A
// session recorded with two excitation wavelengths spans two rows sharing
// (Mouse, Date).
type SessionRow struct {
	Mouse                  string
	Date                   string
	RawBehaviorFile        string
	ProcessedBehaviorFile  string
	ExcitationWavelengthNM int
	InjectedSensor         string
}

// SessionGroup is the set of rows of one recording session.
type SessionGroup struct {
	Mouse string
	Date  string
	Rows  []SessionRow
}

// DataTable is the lab's session registry, an xlsx workbook with a Sessions
// sheet and a Mice sheet.
type DataTable struct {
	Path     string
	sessions []SessionRow
	mice     []map[string]string
}

// sheetRecords reads a sheet into one map per row, keyed by header.
func sheetRecords(file *excelize.File, sheet string) ([]map[string]string, error) {
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %q: %w", sheet, err)
	}
	if len(rows) < 1 {
		return nil, &ErrMissingMetadata{Name: "header row", Table: sheet}
	}
	header := rows[0]
	var records []map[string]string
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func OpenDataTable(path string) (*DataTable, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}
	defer file.Close()

	sessionRecords, err := sheetRecords(file, sessionsSheetName)
	if err != nil {
		return nil, err
	}
	mice, err := sheetRecords(file, miceSheetName)
	if err != nil {
		return nil, err
	}

	table := &DataTable{Path: path, mice: mice}
	for _, record := range sessionRecords {
		wavelength, err := strconv.Atoi(record["LED excitation wavelength (nm)"])
		if err != nil {
			return nil, &ErrConfiguration{
				Parameter: "LED excitation wavelength (nm)",
				Reason:    fmt.Sprintf("not a number for mouse %q: %v", record["Mouse"], err),
			}
		}
		table.sessions = append(table.sessions, SessionRow{
			Mouse:                  record["Mouse"],
			Date:                   record["Date (YYYYMMDD)"],
			RawBehaviorFile:        record["Raw behavior file"],
			ProcessedBehaviorFile:  record["Processed behavior file"],
			ExcitationWavelengthNM: wavelength,
			InjectedSensor:         record["Relevant injected sensor"],
		})
	}
	logger.Info(fmt.Sprintf("Loaded data table with %d session rows and %d mice", len(table.sessions), len(mice)), "datatable")
	return table, nil
}

// Subject resolves the subject record for the given ID. Mouse IDs in the
// table may carry dashes (e.g. "DL-18") while folder names do not.
func (t *DataTable) Subject(subjectID string) (*SubjectRecord, error) {
	for _, record := range t.mice {
		if strings.ReplaceAll(record["MouseID"], "-", "") != subjectID {
			continue
		}
		location, err := time.LoadLocation(GetConfiguration().Timezone)
		if err != nil {
			return nil, &ErrConfiguration{Parameter: "timezone", Reason: err.Error()}
		}
		dateOfBirth, err := time.ParseInLocation("2006-01-02", record["Date of Birth"], location)
		if err != nil {
			return nil, fmt.Errorf("error parsing date of birth of %q: %w", subjectID, err)
		}
		sex := record["Sex"]
		if sex == "" {
			sex = "U"
		}
		return &SubjectRecord{
			SubjectID:   record["MouseID"],
			DateOfBirth: dateOfBirth,
			Sex:         sex,
			Genotype:    record["Genotype"],
			Strain:      record["Strain"],
			Species:     "Mus musculus",
		}, nil
	}
	return nil, &ErrMissingMetadata{Name: subjectID, Table: miceSheetName}
}

// SessionGroups returns the sessions grouped by (Mouse, Date) in table order.
// With a non-empty subject filter, only those subjects' sessions return.
func (t *DataTable) SessionGroups(subjectIDs []string) []SessionGroup {
	var groups []SessionGroup
	index := make(map[string]int)
	for _, row := range t.sessions {
		subjectID := strings.ReplaceAll(row.Mouse, "-", "")
		if len(subjectIDs) > 0 && !slices.Contains(subjectIDs, subjectID) {
			continue
		}
		key := row.Mouse + "\x00" + row.Date
		position, ok := index[key]
		if !ok {
			position = len(groups)
			index[key] = position
			groups = append(groups, SessionGroup{Mouse: row.Mouse, Date: row.Date})
		}
		groups[position].Rows = append(groups[position].Rows, row)
	}
	return groups
}

// ReadFiberLocations reads the per-subject fiber placement spreadsheet. Rows
// without a ccf_label are fibers that missed the target area; they keep their
// table row so the column order of the traces is preserved.
func ReadFiberLocations(path string) ([]FiberLocation, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ErrMissingMetadata{Name: "sheet", Table: path}
	}
	records, err := sheetRecords(file, sheets[0])
	if err != nil {
		return nil, err
	}

	parseCoordinate := func(record map[string]string, column string) (float64, error) {
		value := record[column]
		if value == "" {
			return 0, nil
		}
		coordinate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, &ErrConfiguration{
				Parameter: column,
				Reason:    fmt.Sprintf("not a number in %q: %v", path, err),
			}
		}
		return coordinate, nil
	}

	var locations []FiberLocation
	for _, record := range records {
		var location FiberLocation
		for i, column := range []string{"fiber_bottom_AP", "fiber_bottom_ML", "fiber_bottom_DV"} {
			if location.Coordinates[i], err = parseCoordinate(record, column); err != nil {
				return nil, err
			}
			if location.AllenAtlasCoordinates[i], err = parseCoordinate(record, column+"_idx"); err != nil {
				return nil, err
			}
		}
		location.BrainArea = record["ccf_label"]
		included := strings.ToLower(record["included"])
		location.Included = included == "" || included == "1" || included == "true" || included == "yes"
		locations = append(locations, location)
	}
	return locations, nil
}
