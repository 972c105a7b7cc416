package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sqlx "github.com/jmoiron/sqlx"

	fiberconv "github.com/howe-lab/fiberconv/pkg"
)

// sessionFiles are the resolved source paths of one recording session.
type sessionFiles struct {
	SessionFolder       string
	TTLFilePath         string
	ImagingFilePaths    []string
	PhotometryFilePaths []string
	CorrectedFilePaths  []string
	BehaviorFilePaths   []string
	TTLStreamNames      []string
	VideoFilePaths      []string
	FiberLocationsPath  string
}

// findFile walks the subject folder for the named file. The data table only
// records file names; sessions live in per-day subfolders.
func findFile(subjectFolder string, fileName string) (string, error) {
	var found string
	err := filepath.WalkDir(subjectFolder, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && entry.Name() == fileName {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("file %q not found under %q", fileName, subjectFolder)
	}
	return found, nil
}

// resolveSessionFiles locates every source file of one session group on disk.
func resolveSessionFiles(folderPath string, subjectID string, group fiberconv.SessionGroup) (*sessionFiles, error) {
	subjectFolder := filepath.Join(folderPath, subjectID)

	ttlFilePath, err := findFile(subjectFolder, group.Rows[0].RawBehaviorFile)
	if err != nil {
		return nil, err
	}
	sessionFolder := filepath.Dir(ttlFilePath)

	files := &sessionFiles{
		SessionFolder:      sessionFolder,
		TTLFilePath:        ttlFilePath,
		FiberLocationsPath: filepath.Join(subjectFolder, subjectID+"_fiber_locations.xlsx"),
	}

	files.ImagingFilePaths, err = filepath.Glob(filepath.Join(sessionFolder, "*.cxd"))
	if err != nil {
		return nil, err
	}
	files.PhotometryFilePaths, err = filepath.Glob(filepath.Join(sessionFolder, "*_ROIs*.mat"))
	if err != nil {
		return nil, err
	}
	if len(files.PhotometryFilePaths) < len(group.Rows) {
		return nil, fmt.Errorf("found %d photometry files in %q, expected %d",
			len(files.PhotometryFilePaths), sessionFolder, len(group.Rows))
	}
	files.CorrectedFilePaths, _ = filepath.Glob(filepath.Join(sessionFolder, "*.tif"))
	files.VideoFilePaths, _ = filepath.Glob(filepath.Join(sessionFolder, subjectID+"*.avi"))

	for _, row := range group.Rows {
		streamName, err := fiberconv.TTLStreamNameFromFilePath(row.ProcessedBehaviorFile)
		if err != nil {
			return nil, err
		}
		files.TTLStreamNames = append(files.TTLStreamNames, streamName)
		files.BehaviorFilePaths = append(files.BehaviorFilePaths, filepath.Join(sessionFolder, row.ProcessedBehaviorFile))
	}

	// A dual-wavelength session may multiplex both wavelengths in one stack
	if len(files.ImagingFilePaths) == 1 && len(group.Rows) == 2 {
		files.ImagingFilePaths = append(files.ImagingFilePaths, files.ImagingFilePaths[0])
	}
	return files, nil
}

func sessionOptionsForRow(files *sessionFiles, group fiberconv.SessionGroup, index int) (fiberconv.SessionOptions, error) {
	row := group.Rows[index]
	indicator, err := fiberconv.IndicatorFromAAVString(row.InjectedSensor)
	if err != nil {
		return fiberconv.SessionOptions{}, err
	}

	opts := fiberconv.SessionOptions{
		FiberPhotometryFilePath: files.PhotometryFilePaths[index],
		TTLFilePath:             files.TTLFilePath,
		TTLStreamName:           files.TTLStreamNames[index],
		FiberLocationsFilePath:  files.FiberLocationsPath,
		ExcitationWavelengthNM:  row.ExcitationWavelengthNM,
		Indicator:               indicator,
		BehaviorFilePath:        files.BehaviorFilePaths[index],
	}
	if index < len(files.ImagingFilePaths) {
		opts.RawImagingFilePath = files.ImagingFilePaths[index]
	}
	if index < len(files.CorrectedFilePaths) {
		opts.MotionCorrectedImagingFilePath = files.CorrectedFilePaths[index]
	}
	// The behavior cameras record once per session; they attach with the
	// first wavelength.
	if index == 0 {
		opts.VideoFilePaths = files.VideoFilePaths
	}
	return opts, nil
}

// convertSession converts one session group and writes the output file.
func convertSession(group fiberconv.SessionGroup, subject *fiberconv.SubjectRecord,
	fiberLocations []fiberconv.FiberLocation, general *fiberconv.GeneralMetadata, outputPath string) error {

	config := fiberconv.GetConfiguration()
	subjectID := strings.ReplaceAll(group.Mouse, "-", "")

	files, err := resolveSessionFiles(config.FolderPath, subjectID, group)
	if err != nil {
		return err
	}

	// Metadata mutates per wavelength; each session loads a fresh copy
	photometryMeta, err := fiberconv.LoadFiberPhotometryMetadata(config.PhotometryMeta)
	if err != nil {
		return err
	}

	first, err := sessionOptionsForRow(files, group, 0)
	if err != nil {
		return err
	}
	first.FiberLocations = fiberLocations

	var doc *fiberconv.Document
	if len(group.Rows) == 2 {
		second, err := sessionOptionsForRow(files, group, 1)
		if err != nil {
			return err
		}
		second.FiberLocations = fiberLocations
		doc, err = fiberconv.DualWavelengthSessionToDocument(first, second, general, photometryMeta, subject)
		if err != nil {
			return err
		}
	} else {
		doc, err = fiberconv.SingleWavelengthSessionToDocument(nil, first, general, photometryMeta, subject)
		if err != nil {
			return err
		}
	}

	writer := fiberconv.NewWriter(outputPath)
	if err := writer.WriteDocument(doc); err != nil {
		writer.Close()
		os.Remove(outputPath)
		return err
	}
	return writer.Close()
}

// ConvertAllSessions walks the data table and converts every matching
// session. A failing session is logged and skipped so one bad file does not
// stop a batch run.
func ConvertAllSessions(dbConn *sqlx.DB) error {
	config := fiberconv.GetConfiguration()

	table, err := fiberconv.OpenDataTable(config.DataTable)
	if err != nil {
		return err
	}
	general, err := fiberconv.LoadGeneralMetadata(config.GeneralMetadata)
	if err != nil {
		return err
	}

	groups := table.SessionGroups(config.SubjectIDs)
	logger.Info(fmt.Sprintf("Converting %d sessions", len(groups)), "batch")

	converted := 0
	for _, group := range groups {
		subjectID := strings.ReplaceAll(group.Mouse, "-", "")

		outputPath := fiberconv.SessionFilePath(config.OutputFolder, subjectID, group.Date)
		if _, err := os.Stat(outputPath); err == nil && !config.Overwrite {
			logger.Info(fmt.Sprintf("Skipping %s, output exists", outputPath), "batch")
			continue
		}

		var subject *fiberconv.SubjectRecord
		var fiberLocations []fiberconv.FiberLocation
		if config.NoDB {
			subject, err = table.Subject(subjectID)
		} else {
			subject, err = fiberconv.SubjectFromDB(dbConn, subjectID)
			if err == nil {
				fiberLocations, err = fiberconv.FiberLocationsFromDB(dbConn, subjectID)
			}
		}
		if err != nil {
			logger.Warn(fmt.Sprintf("Skipping session %s %s: %v", group.Mouse, group.Date, err), "batch")
			continue
		}

		logger.Info(fmt.Sprintf("Converting subject %q session %q", subjectID, group.Date), "batch")
		if err := convertSession(group, subject, fiberLocations, general, outputPath); err != nil {
			logger.Warn(fmt.Sprintf("Skipping session %s %s: %v", group.Mouse, group.Date, err), "batch")
			continue
		}
		converted++
	}
	logger.Info(fmt.Sprintf("Converted %d of %d sessions", converted, len(groups)), "batch")
	return nil
}
