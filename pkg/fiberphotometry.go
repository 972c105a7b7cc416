package fiberconv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// RawSeriesName is the raw fluorescence series; baseline and corrected
	// variants reuse its table region and timing policy.
	RawSeriesName = "FiberPhotometryResponseSeries"

	ContainerAcquisition = "acquisition"
	ContainerOphys       = "processing/ophys"

	ophysModuleDescription = "Contains the processed fiber photometry data."
)

// regularSeriesTolerance is the maximum deviation of a timestamp step from
// the mean step for the series to collapse to (rate, starting time).
const regularSeriesTolerance = 1e-6

// CalculateRegularSeriesRate reports the sampling rate when the timestamp
// array is equally spaced within floating-point tolerance.
func CalculateRegularSeriesRate(timestamps []float64) (float64, bool) {
	if len(timestamps) < 2 {
		return 0, false
	}
	diffs := make([]float64, len(timestamps)-1)
	for i := range diffs {
		diffs[i] = timestamps[i+1] - timestamps[i]
	}
	mean := floats.Sum(diffs) / float64(len(diffs))
	if mean <= 0 {
		return 0, false
	}
	for _, diff := range diffs {
		if math.Abs(diff-mean) > regularSeriesTolerance {
			return 0, false
		}
	}
	return 1 / mean, true
}

// SeriesOptions selects the table rows and the parent container for one
// response series.
type SeriesOptions struct {
	// TableRegion is the row-index subset the series refers to. Nil selects
	// the full just-appended range.
	TableRegion []int
	// Container is "acquisition" (default) or "processing/ophys".
	Container string
}

// AddFiberPhotometrySeries attaches one response series to the document,
// populating the fiber table on the first call. The first series resolves the
// hardware chain, appends one table row per fiber, creates the table region
// and computes the timing descriptor. Later series for the same fiber set
// reuse the raw series' region and timing rather than recomputing, so every
// series of the session references one consistent region and one timeline.
func AddFiberPhotometrySeries(doc *Document, meta *FiberPhotometryMetadata, data *Matrix, timestamps []float64,
	seriesName string, fiberLocations []FiberLocation, opts SeriesOptions) error {

	traceMeta, err := meta.SeriesMetadata(seriesName)
	if err != nil {
		return err
	}

	if doc.FiberTable == nil {
		doc.FiberTable = &FiberPhotometryTable{Description: meta.TableDescription}
	}

	if err := resolveDevice(doc, meta, KindOpticalFiber, traceMeta.OpticalFiber); err != nil {
		return err
	}
	if err := resolveDevice(doc, meta, KindIndicator, traceMeta.Indicator); err != nil {
		return err
	}
	if err := resolveDevice(doc, meta, KindExcitationSource, traceMeta.ExcitationSource); err != nil {
		return err
	}
	if err := resolveDevice(doc, meta, KindPhotodetector, traceMeta.Photodetector); err != nil {
		return err
	}
	if err := resolveDevice(doc, meta, KindDichroicMirror, traceMeta.DichroicMirror); err != nil {
		return err
	}
	if err := resolveDevice(doc, meta, KindBandOpticalFilter, traceMeta.ExcitationFilter); err != nil {
		return err
	}
	if traceMeta.EmissionFilter != "" {
		if err := resolveDevice(doc, meta, KindBandOpticalFilter, traceMeta.EmissionFilter); err != nil {
			return err
		}
	}

	if data.Frames != len(timestamps) {
		return &ErrShapeMismatch{What: "response series frames and timestamps", Want: data.Frames, Got: len(timestamps)}
	}

	numFibers := data.Fibers
	var region *TableRegion
	var timing Timing

	if len(doc.FiberTable.Rows) == 0 {
		if len(fiberLocations) != numFibers {
			return &ErrShapeMismatch{What: "fiber locations and response series columns", Want: numFibers, Got: len(fiberLocations)}
		}
		for _, location := range fiberLocations {
			doc.FiberTable.Rows = append(doc.FiberTable.Rows, FiberTableRow{
				Location:              location.BrainArea,
				Coordinates:           location.Coordinates,
				AllenAtlasCoordinates: location.AllenAtlasCoordinates,
				IsGoodFiber:           location.Included && location.BrainArea != "",
				OpticalFiber:          traceMeta.OpticalFiber,
				Indicator:             traceMeta.Indicator,
				ExcitationSource:      traceMeta.ExcitationSource,
				Photodetector:         traceMeta.Photodetector,
				DichroicMirror:        traceMeta.DichroicMirror,
				ExcitationFilter:      traceMeta.ExcitationFilter,
				EmissionFilter:        traceMeta.EmissionFilter,
			})
		}

		rows := opts.TableRegion
		if rows == nil {
			rows = make([]int, numFibers)
			for i := range rows {
				rows[i] = i
			}
		}
		region = doc.FiberTable.CreateRegion(rows, "source fibers")

		if rate, ok := CalculateRegularSeriesRate(timestamps); ok {
			timing = Timing{Rate: rate, StartingTime: timestamps[0]}
		} else {
			timing = Timing{Timestamps: timestamps}
		}
	} else {
		rawSeries, ok := doc.Acquisition(RawSeriesName)
		if !ok {
			return &ErrMissingMetadata{Name: RawSeriesName, Table: "acquisition"}
		}
		region = rawSeries.Region
		timing = rawSeries.Timing
	}

	series := &ResponseSeries{
		Name:        traceMeta.Name,
		Description: traceMeta.Description,
		Unit:        "n.a.",
		Data:        data,
		Region:      region,
		Timing:      timing,
	}

	switch opts.Container {
	case "", ContainerAcquisition:
		return doc.AddAcquisition(series)
	case ContainerOphys:
		ophys := doc.Module("ophys", ophysModuleDescription)
		ophys.ResponseSeries = append(ophys.ResponseSeries, series)
		return nil
	default:
		return &ErrConfiguration{Parameter: "parent_container", Reason: fmt.Sprintf("invalid parent container %q", opts.Container)}
	}
}
