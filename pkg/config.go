package fiberconv

type Configuration struct {
	DataTable        string   `json:"data_table"`
	FolderPath       string   `json:"folder_path"`
	OutputFolder     string   `json:"output_folder"`
	SubjectIDs       []string `json:"subject_ids"`
	GeneralMetadata  string   `json:"general_metadata"`
	PhotometryMeta   string   `json:"fiber_photometry_metadata"`
	Timezone         string   `json:"timezone"`
	StubTest         bool     `json:"stub_test"`
	StubFrames       int      `json:"stub_frames"`
	Overwrite        bool     `json:"overwrite"`
	Verbosity        int      `json:"verbosity"`
	BaselineField    string   `json:"baseline_field"`
	CorrectedField   string   `json:"corrected_field"`
	BallDiameter     float64  `json:"ball_diameter_m"`
	CompressionLevel int      `json:"compression_level"`
	NoDB             bool     `json:"no_db"`
	Host             string   `json:"host"`
	User             string   `json:"user"`
	Passwd           string   `json:"pass"`
	DBName           string   `json:"dbname"`
}

var configuration = Configuration{
	Timezone:         "US/Eastern",
	StubFrames:       6000,
	BaselineField:    "F_baseline",
	CorrectedField:   "Fc",
	BallDiameter:     0.2032,
	CompressionLevel: 4,
	NoDB:             true,
}

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}
