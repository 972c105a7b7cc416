package fiberconv

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// ResponseSeriesMetadata describes one response series and its hardware chain
// by device name. The emission filter is optional; it is resolved only when
// the metadata table supplies it.
type ResponseSeriesMetadata struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	OpticalFiber     string `yaml:"optical_fiber"`
	Indicator        string `yaml:"indicator"`
	ExcitationSource string `yaml:"excitation_source"`
	Photodetector    string `yaml:"photodetector"`
	DichroicMirror   string `yaml:"dichroic_mirror"`
	ExcitationFilter string `yaml:"excitation_filter"`
	EmissionFilter   string `yaml:"emission_filter"`
}

// FiberPhotometryMetadata is the typed metadata for the fiber photometry
// setup, loaded from YAML. Layered overrides happen through explicit helpers,
// not dictionary merging.
type FiberPhotometryMetadata struct {
	TableDescription   string                   `yaml:"fiber_photometry_table_description"`
	OpticalFibers      []OpticalFiber           `yaml:"OpticalFibers"`
	Indicators         []Indicator              `yaml:"Indicators"`
	ExcitationSources  []ExcitationSource       `yaml:"ExcitationSources"`
	Photodetectors     []Photodetector          `yaml:"Photodetectors"`
	DichroicMirrors    []DichroicMirror         `yaml:"DichroicMirrors"`
	BandOpticalFilters []BandOpticalFilter      `yaml:"BandOpticalFilters"`
	ResponseSeries     []ResponseSeriesMetadata `yaml:"FiberPhotometryResponseSeries"`
}

func LoadFiberPhotometryMetadata(path string) (*FiberPhotometryMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}
	var meta FiberPhotometryMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("error parsing fiber photometry metadata %q: %w", path, err)
	}
	return &meta, nil
}

// Device resolves a named device record of the given kind. Unknown kinds are
// rejected; a missing record is an ErrMissingMetadata.
func (m *FiberPhotometryMetadata) Device(kind DeviceKind, name string) (Device, error) {
	switch kind {
	case KindOpticalFiber:
		for _, device := range m.OpticalFibers {
			if device.Name == name {
				return device, nil
			}
		}
	case KindIndicator:
		for _, device := range m.Indicators {
			if device.Name == name {
				return device, nil
			}
		}
	case KindExcitationSource:
		for _, device := range m.ExcitationSources {
			if device.Name == name {
				return device, nil
			}
		}
	case KindPhotodetector:
		for _, device := range m.Photodetectors {
			if device.Name == name {
				return device, nil
			}
		}
	case KindDichroicMirror:
		for _, device := range m.DichroicMirrors {
			if device.Name == name {
				return device, nil
			}
		}
	case KindBandOpticalFilter:
		for _, device := range m.BandOpticalFilters {
			if device.Name == name {
				return device, nil
			}
		}
	default:
		return nil, &ErrConfiguration{Parameter: "device kind", Reason: fmt.Sprintf("unknown kind %d", kind)}
	}
	return nil, &ErrMissingMetadata{Name: name, Table: kind.String() + " metadata"}
}

// SeriesMetadata finds the response series entry with the given name.
func (m *FiberPhotometryMetadata) SeriesMetadata(name string) (*ResponseSeriesMetadata, error) {
	for i := range m.ResponseSeries {
		if m.ResponseSeries[i].Name == name {
			return &m.ResponseSeries[i], nil
		}
	}
	return nil, &ErrMissingMetadata{Name: name, Table: "FiberPhotometryResponseSeries metadata"}
}

// UpdateForExcitation points the raw response series entry at the devices for
// the given indicator and excitation wavelength. The dichroic mirror follows
// the lab's light path for each excitation line.
func (m *FiberPhotometryMetadata) UpdateForExcitation(indicator string, excitationWavelengthNM int) error {
	if len(m.ResponseSeries) == 0 {
		return &ErrMissingMetadata{Name: "FiberPhotometryResponseSeries", Table: "fiber photometry metadata"}
	}

	var dichroicMirror string
	switch excitationWavelengthNM {
	case 470, 405:
		dichroicMirror = "DichroicMirror2"
	case 570:
		dichroicMirror = "DichroicMirror3a"
	default:
		return &ErrConfiguration{
			Parameter: "excitation_wavelength_in_nm",
			Reason:    fmt.Sprintf("can't determine the dichroic mirror for %d nm excitation", excitationWavelengthNM),
		}
	}

	series := &m.ResponseSeries[0]
	series.Indicator = indicator
	series.ExcitationSource = fmt.Sprintf("ExcitationSource%d", excitationWavelengthNM)
	series.ExcitationFilter = fmt.Sprintf("OpticalFilter%d", excitationWavelengthNM)
	series.DichroicMirror = dichroicMirror
	return nil
}

// DerivedSeries appends a response series entry derived from the raw one by
// textual substitution of its description and prefixing of its name.
func (m *FiberPhotometryMetadata) DerivedSeries(prefix string, descriptionReplacement string) (*ResponseSeriesMetadata, error) {
	if len(m.ResponseSeries) == 0 {
		return nil, &ErrMissingMetadata{Name: "FiberPhotometryResponseSeries", Table: "fiber photometry metadata"}
	}
	derived := m.ResponseSeries[0]
	derived.Name = prefix + derived.Name
	derived.Description = strings.ReplaceAll(derived.Description, "Raw", descriptionReplacement)
	m.ResponseSeries = append(m.ResponseSeries, derived)
	return &m.ResponseSeries[len(m.ResponseSeries)-1], nil
}

// GeneralMetadata is the editable session-level metadata.
type GeneralMetadata struct {
	SessionDescription string   `yaml:"session_description"`
	Institution        string   `yaml:"institution"`
	Lab                string   `yaml:"lab"`
	Experimenter       []string `yaml:"experimenter"`
	Keywords           []string `yaml:"keywords"`
	RelatedPublication string   `yaml:"related_publications"`
}

func LoadGeneralMetadata(path string) (*GeneralMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}
	var meta GeneralMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("error parsing general metadata %q: %w", path, err)
	}
	return &meta, nil
}

var indicatorPattern = regexp.MustCompile(`(dLight1\.3b|GCaMP7f|Ach3\.0|jRGECO1a|tdTomato|rDA3m)`)

// IndicatorFromAAVString extracts the indicator name from the free-text
// injected-sensor column (e.g. "pAAV-CAG-dLight1.3b (AAV5)" -> "dLight1.3b").
func IndicatorFromAAVString(aavString string) (string, error) {
	match := indicatorPattern.FindString(aavString)
	if match == "" {
		return "", &ErrMissingMetadata{Name: aavString, Table: "known indicators (dLight1.3b, GCaMP7f, Ach3.0, jRGECO1a, tdTomato, rDA3m)"}
	}
	return match, nil
}
