package main

import (
	"encoding/json"
	"fmt"
	"os"

	fiberconv "github.com/howe-lab/fiberconv/pkg"
)

func LoadConfiguration(filename string) (fiberconv.Configuration, error) {
	// Set default values
	config := fiberconv.GetConfiguration()
	config.Timezone = "US/Eastern"
	config.StubFrames = 6000
	config.BaselineField = "F_baseline"
	config.CorrectedField = "Fc"
	config.BallDiameter = 0.2032
	config.CompressionLevel = 4
	config.NoDB = true
	config.Host = "howelab-db.bu.edu"
	config.User = "howereader"
	config.Passwd = "readonly"
	config.DBName = "HoweLab"

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config fiberconv.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Data table: %s", config.DataTable), "config")
	logger.Info(fmt.Sprintf("Folder path: %s", config.FolderPath), "config")
	logger.Info(fmt.Sprintf("Output folder: %s", config.OutputFolder), "config")
	logger.Info(fmt.Sprintf("Subject IDs: %v", config.SubjectIDs), "config")
	logger.Info(fmt.Sprintf("General metadata: %s", config.GeneralMetadata), "config")
	logger.Info(fmt.Sprintf("Fiber photometry metadata: %s", config.PhotometryMeta), "config")
	logger.Info(fmt.Sprintf("Timezone: %s", config.Timezone), "config")
	logger.Info(fmt.Sprintf("Stub test: %t", config.StubTest), "config")
	logger.Info(fmt.Sprintf("Stub frames: %d", config.StubFrames), "config")
	logger.Info(fmt.Sprintf("Overwrite: %t", config.Overwrite), "config")
	logger.Info(fmt.Sprintf("Baseline field: %s", config.BaselineField), "config")
	logger.Info(fmt.Sprintf("Corrected field: %s", config.CorrectedField), "config")
	logger.Info(fmt.Sprintf("Ball diameter (m): %f", config.BallDiameter), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
