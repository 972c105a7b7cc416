package fiberconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPhotometryMetadataYaml = `
fiber_photometry_table_description: Fiber photometry data from multi-fiber arrays.
OpticalFibers:
  - name: OpticalFiber1
    description: Multi-fiber array.
    manufacturer: Fiber Optics Tech
    numerical_aperture: 0.66
    core_diameter_in_um: 34.0
Indicators:
  - name: dLight1.3b
    description: Dopamine indicator.
    manufacturer: Addgene
    label: AAV5-CAG-dLight1.3b
ExcitationSources:
  - name: ExcitationSource470
    description: Blue LED.
    excitation_wavelength_in_nm: 470.0
  - name: ExcitationSource570
    description: Yellow LED.
    excitation_wavelength_in_nm: 570.0
Photodetectors:
  - name: Photodetector1
    description: sCMOS camera.
DichroicMirrors:
  - name: DichroicMirror2
    description: Green path.
  - name: DichroicMirror3a
    description: Red path.
BandOpticalFilters:
  - name: OpticalFilter470
    description: Excitation filter.
    center_wavelength_in_nm: 470.0
    bandwidth_in_nm: 24.0
    filter_type: Bandpass
  - name: OpticalFilter570
    description: Excitation filter.
    center_wavelength_in_nm: 570.0
    bandwidth_in_nm: 20.0
    filter_type: Bandpass
FiberPhotometryResponseSeries:
  - name: FiberPhotometryResponseSeries
    description: Raw fluorescence traces.
    optical_fiber: OpticalFiber1
    photodetector: Photodetector1
`

func loadTestPhotometryMetadata(t *testing.T) *FiberPhotometryMetadata {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fiber_photometry_metadata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPhotometryMetadataYaml), 0o644))
	meta, err := LoadFiberPhotometryMetadata(path)
	require.NoError(t, err)
	return meta
}

func TestLoadFiberPhotometryMetadata(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	require.Equal(t, "Fiber photometry data from multi-fiber arrays.", meta.TableDescription)
	require.Len(t, meta.ResponseSeries, 1)
	require.Equal(t, RawSeriesName, meta.ResponseSeries[0].Name)

	device, err := meta.Device(KindOpticalFiber, "OpticalFiber1")
	require.NoError(t, err)
	fiber, ok := device.(OpticalFiber)
	require.True(t, ok)
	require.Equal(t, 0.66, fiber.NumericalAperture)
}

func TestDeviceNotFound(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	_, err := meta.Device(KindPhotodetector, "Photodetector2")
	var missingErr *ErrMissingMetadata
	require.ErrorAs(t, err, &missingErr)
}

func TestUpdateForExcitation(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)

	require.NoError(t, meta.UpdateForExcitation("dLight1.3b", 470))
	series := meta.ResponseSeries[0]
	require.Equal(t, "dLight1.3b", series.Indicator)
	require.Equal(t, "ExcitationSource470", series.ExcitationSource)
	require.Equal(t, "OpticalFilter470", series.ExcitationFilter)
	require.Equal(t, "DichroicMirror2", series.DichroicMirror)

	require.NoError(t, meta.UpdateForExcitation("jRGECO1a", 570))
	series = meta.ResponseSeries[0]
	require.Equal(t, "DichroicMirror3a", series.DichroicMirror)

	err := meta.UpdateForExcitation("dLight1.3b", 532)
	var configErr *ErrConfiguration
	require.ErrorAs(t, err, &configErr)
}

func TestDerivedSeries(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)

	baseline, err := meta.DerivedSeries("Baseline", "Baseline")
	require.NoError(t, err)
	require.Equal(t, "BaselineFiberPhotometryResponseSeries", baseline.Name)
	require.Equal(t, "Baseline fluorescence traces.", baseline.Description)

	corrected, err := meta.DerivedSeries("DfOverF", "Baseline corrected (DF/F)")
	require.NoError(t, err)
	require.Equal(t, "DfOverFFiberPhotometryResponseSeries", corrected.Name)
	require.Equal(t, "Baseline corrected (DF/F) fluorescence traces.", corrected.Description)

	// The derived entries are resolvable by name afterwards
	found, err := meta.SeriesMetadata("BaselineFiberPhotometryResponseSeries")
	require.NoError(t, err)
	require.Equal(t, baseline.Name, found.Name)
}

func TestIndicatorFromAAVString(t *testing.T) {
	indicator, err := IndicatorFromAAVString("pAAV-CAG-dLight1.3b (AAV5)")
	require.NoError(t, err)
	require.Equal(t, "dLight1.3b", indicator)

	indicator, err = IndicatorFromAAVString("AAV9-hSyn-NES-jRGECO1a")
	require.NoError(t, err)
	require.Equal(t, "jRGECO1a", indicator)

	_, err = IndicatorFromAAVString("AAV9-hSyn-eGFP")
	require.Error(t, err)
}

func TestLoadGeneralMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "general_metadata.yaml")
	content := `
session_description: Fiber photometry recording.
institution: Boston University
lab: Howe
experimenter:
  - Vu, Mai-Anh
keywords:
  - fiber photometry
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	meta, err := LoadGeneralMetadata(path)
	require.NoError(t, err)
	require.Equal(t, "Howe", meta.Lab)
	require.Equal(t, []string{"Vu, Mai-Anh"}, meta.Experimenter)
}
