package fiberconv

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

// The lab database mirrors the registry spreadsheets. It is the source of
// truth for the colony; the xlsx data table is a periodic export. With
// Configuration.NoDB the converter never touches the network and reads the
// spreadsheets instead.

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type mouseEntry struct {
	MouseID     string    `db:"MouseID"`
	DateOfBirth time.Time `db:"DateOfBirth"`
	Sex         string    `db:"Sex"`
	Genotype    string    `db:"Genotype"`
	Strain      string    `db:"Strain"`
}

type fiberLocationEntry struct {
	AP       float64 `db:"AP"`
	ML       float64 `db:"ML"`
	DV       float64 `db:"DV"`
	APIdx    float64 `db:"APIdx"`
	MLIdx    float64 `db:"MLIdx"`
	DVIdx    float64 `db:"DVIdx"`
	CcfLabel string  `db:"CcfLabel"`
	Included bool    `db:"Included"`
}

// SubjectFromDB reads the subject record from the Mice table. The key matches
// with dashes stripped, like the spreadsheet lookup.
func SubjectFromDB(db *sqlx.DB, subjectID string) (*SubjectRecord, error) {
	query := "SELECT MouseID, DateOfBirth, Sex, Genotype, Strain FROM Mice WHERE REPLACE(MouseID, '-', '') = ?"
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s [%s]", query, subjectID), "database")
	}
	rows, err := db.Queryx(query, subjectID)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, &ErrMissingMetadata{Name: subjectID, Table: "Mice"}
	}
	result := mouseEntry{}
	if err := rows.StructScan(&result); err != nil {
		errMessage := fmt.Errorf("error scanning DB row: %w", err)
		return nil, errMessage
	}
	sex := result.Sex
	if sex == "" {
		sex = "U"
	}
	return &SubjectRecord{
		SubjectID:   result.MouseID,
		DateOfBirth: result.DateOfBirth,
		Sex:         sex,
		Genotype:    result.Genotype,
		Strain:      result.Strain,
		Species:     "Mus musculus",
	}, nil
}

// FiberLocationsFromDB reads the fiber implant coordinates from the
// FiberLocations table, ordered by the fiber index so rows line up with the
// trace columns.
func FiberLocationsFromDB(db *sqlx.DB, subjectID string) ([]FiberLocation, error) {
	query := "SELECT AP, ML, DV, APIdx, MLIdx, DVIdx, CcfLabel, Included FROM FiberLocations WHERE REPLACE(MouseID, '-', '') = ? ORDER BY FiberIdx"
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading fiber locations of %s from database", subjectID), "database")
	}
	rows, err := db.Queryx(query, subjectID)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	var locations []FiberLocation
	for rows.Next() {
		result := fiberLocationEntry{}
		if err := rows.StructScan(&result); err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		locations = append(locations, FiberLocation{
			Coordinates:           [3]float64{result.AP, result.ML, result.DV},
			AllenAtlasCoordinates: [3]float64{result.APIdx, result.MLIdx, result.DVIdx},
			BrainArea:             result.CcfLabel,
			Included:              result.Included,
		})
	}
	if len(locations) == 0 {
		return nil, &ErrMissingMetadata{Name: subjectID, Table: "FiberLocations"}
	}
	return locations, nil
}
