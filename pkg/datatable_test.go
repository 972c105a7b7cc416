package fiberconv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeTestDataTable(t *testing.T) string {
	t.Helper()
	file := excelize.NewFile()
	defer file.Close()

	_, err := file.NewSheet(sessionsSheetName)
	require.NoError(t, err)
	sessionRows := [][]interface{}{
		{"Mouse", "Date (YYYYMMDD)", "Raw behavior file", "Processed behavior file", "LED excitation wavelength (nm)", "Relevant injected sensor"},
		{"DL-18", "20230501", "DL18_raw.mat", "DL18_ttlIn1_processed.mat", "470", "pAAV-CAG-dLight1.3b (AAV5)"},
		{"DL-18", "20230501", "DL18_raw.mat", "DL18_ttlIn2_processed.mat", "570", "AAV9-hSyn-NES-jRGECO1a"},
		{"DL-18", "20230502", "DL18_raw2.mat", "DL18_ttlIn1_processed2.mat", "470", "pAAV-CAG-dLight1.3b (AAV5)"},
		{"Grik4-01", "20230611", "Grik401_raw.mat", "Grik401_ttlIn1_processed.mat", "470", "AAV9-hSyn-GCaMP7f"},
	}
	for i, row := range sessionRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow(sessionsSheetName, cell, &row))
	}

	_, err = file.NewSheet(miceSheetName)
	require.NoError(t, err)
	miceRows := [][]interface{}{
		{"MouseID", "Date of Birth", "Sex", "Genotype", "Strain"},
		{"DL-18", "2022-11-21", "", "wt", "C57BL/6J"},
		{"Grik4-01", "2022-08-01", "M", "Grik4-cre", "C57BL/6J"},
	}
	for i, row := range miceRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow(miceSheetName, cell, &row))
	}
	require.NoError(t, file.DeleteSheet("Sheet1"))

	path := filepath.Join(t.TempDir(), "data_table.xlsx")
	require.NoError(t, file.SaveAs(path))
	return path
}

func TestOpenDataTable(t *testing.T) {
	table, err := OpenDataTable(writeTestDataTable(t))
	require.NoError(t, err)

	groups := table.SessionGroups(nil)
	require.Len(t, groups, 3)

	// The dual-wavelength session groups its two rows
	require.Equal(t, "DL-18", groups[0].Mouse)
	require.Equal(t, "20230501", groups[0].Date)
	require.Len(t, groups[0].Rows, 2)
	require.Equal(t, 470, groups[0].Rows[0].ExcitationWavelengthNM)
	require.Equal(t, 570, groups[0].Rows[1].ExcitationWavelengthNM)

	require.Len(t, groups[1].Rows, 1)
	require.Len(t, groups[2].Rows, 1)
}

func TestSessionGroupsSubjectFilter(t *testing.T) {
	table, err := OpenDataTable(writeTestDataTable(t))
	require.NoError(t, err)

	// The filter matches on dash-stripped IDs
	groups := table.SessionGroups([]string{"Grik401"})
	require.Len(t, groups, 1)
	require.Equal(t, "Grik4-01", groups[0].Mouse)
}

func TestSubject(t *testing.T) {
	table, err := OpenDataTable(writeTestDataTable(t))
	require.NoError(t, err)

	subject, err := table.Subject("DL18")
	require.NoError(t, err)
	require.Equal(t, "DL-18", subject.SubjectID)
	require.Equal(t, "U", subject.Sex)
	require.Equal(t, "Mus musculus", subject.Species)
	require.Equal(t, 2022, subject.DateOfBirth.Year())

	subject, err = table.Subject("Grik401")
	require.NoError(t, err)
	require.Equal(t, "M", subject.Sex)

	_, err = table.Subject("DL99")
	var missingErr *ErrMissingMetadata
	require.ErrorAs(t, err, &missingErr)
}

func TestReadFiberLocations(t *testing.T) {
	file := excelize.NewFile()
	defer file.Close()
	rows := [][]interface{}{
		{"fiber_bottom_AP", "fiber_bottom_ML", "fiber_bottom_DV", "fiber_bottom_AP_idx", "fiber_bottom_ML_idx", "fiber_bottom_DV_idx", "ccf_label", "included"},
		{"0.5", "1.1", "-2.8", "540", "680", "310", "CP", "1"},
		{"0.7", "1.3", "-3.0", "550", "690", "320", "", "0"},
		{"0.9", "1.5", "-3.2", "560", "700", "330", "ACB", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "DL18_fiber_locations.xlsx")
	require.NoError(t, file.SaveAs(path))

	locations, err := ReadFiberLocations(path)
	require.NoError(t, err)
	require.Len(t, locations, 3)

	require.Equal(t, [3]float64{0.5, 1.1, -2.8}, locations[0].Coordinates)
	require.Equal(t, [3]float64{540, 680, 310}, locations[0].AllenAtlasCoordinates)
	require.Equal(t, "CP", locations[0].BrainArea)
	require.True(t, locations[0].Included)

	require.Equal(t, "", locations[1].BrainArea)
	require.False(t, locations[1].Included)

	// An empty included cell keeps the fiber
	require.True(t, locations[2].Included)
}
