package fiberconv

import (
	"fmt"
	"time"
)

// SubjectRecord holds the subject block of the output document.
type SubjectRecord struct {
	SubjectID   string
	DateOfBirth time.Time
	Sex         string
	Genotype    string
	Strain      string
	Species     string
}

// FiberLocation is one physical optical fiber implant read from the fiber
// placement spreadsheet.
type FiberLocation struct {
	Coordinates           [3]float64
	AllenAtlasCoordinates [3]float64
	BrainArea             string
	Included              bool
}

// FiberTableRow combines a FiberLocation with resolved device links. Device
// fields hold names; the devices themselves live in the document namespace.
type FiberTableRow struct {
	Location              string
	Coordinates           [3]float64
	AllenAtlasCoordinates [3]float64
	IsGoodFiber           bool
	OpticalFiber          string
	Indicator             string
	ExcitationSource      string
	Photodetector         string
	DichroicMirror        string
	ExcitationFilter      string
	EmissionFilter        string
}

// FiberPhotometryTable is the append-only fiber-location table. It is
// populated exactly once per session; row order is fixed at first population
// and is the contract for which rows a later table region selects.
type FiberPhotometryTable struct {
	Description string
	Rows        []FiberTableRow
}

// TableRegion is a named reference to a row subset of the fiber table, shared
// by every response series of one container.
type TableRegion struct {
	Rows        []int
	Description string
}

// CreateRegion returns a region over the given row indices.
func (t *FiberPhotometryTable) CreateRegion(rows []int, description string) *TableRegion {
	return &TableRegion{Rows: rows, Description: description}
}

// Timing describes a series timeline: either (StartingTime, Rate) when the
// timestamps were regular to floating-point tolerance, or the explicit array.
type Timing struct {
	Rate         float64
	StartingTime float64
	Timestamps   []float64
}

func (t Timing) IsRegular() bool {
	return t.Rate > 0
}

// ResponseSeries is one named fluorescence data stream, [frames x fibers].
type ResponseSeries struct {
	Name        string
	Description string
	Unit        string
	Data        *Matrix
	Region      *TableRegion
	Timing      Timing
}

// TimeSeries is a generic behavioral data stream. Columns is 1 for scalar
// signals, 2 for the (roll, pitch) velocity pair.
type TimeSeries struct {
	Name        string
	Description string
	Unit        string
	Data        []float64
	Columns     int
	Timestamps  []float64
}

// IntervalRow is one row of a time-intervals table.
type IntervalRow struct {
	StartTime float64
	StopTime  float64
	EventType string
}

// TimeIntervals is an event-interval table with start/stop/event_type columns.
type TimeIntervals struct {
	Name        string
	Description string
	Rows        []IntervalRow
}

// ImageSeries references video data by external file, with aligned timestamps.
type ImageSeries struct {
	Name         string
	Description  string
	ExternalFile string
	Timestamps   []float64
}

// PhotonSeries is an imaging stack attached to the document. Frames stay
// behind the extractor until write time.
type PhotonSeries struct {
	Name        string
	Description string
	Extractor   ImagingExtractor
	Timing      Timing
	DeviceName  string
}

// PlaneSegmentation holds the ROI masks from the segmentation reader.
type PlaneSegmentation struct {
	Name         string
	Description  string
	ImageMasks   []float64 // row-major [rois x rows x columns]
	NumRois      int
	NumRows      int
	NumColumns   int
	RoiCentroids [][2]float64
	AcceptedRois []int
}

// ProcessingModule is a named container of processed data streams.
type ProcessingModule struct {
	Name           string
	Description    string
	ResponseSeries []*ResponseSeries
	TimeSeries     []*TimeSeries
	Intervals      []*TimeIntervals
	PhotonSeries   []*PhotonSeries
	Segmentations  []*PlaneSegmentation
}

// Document is the in-memory session document assembled by the converter and
// serialized by the Writer. It models the container as a device namespace,
// an acquisition container and named processing modules.
type Document struct {
	Identifier         string
	SessionDescription string
	SessionStartTime   time.Time
	Subject            *SubjectRecord

	devices     map[string]Device
	deviceOrder []string

	FiberTable *FiberPhotometryTable

	acquisitionSeries map[string]*ResponseSeries
	acquisitionOrder  []string
	acquisitionPhoton []*PhotonSeries
	acquisitionImages []*ImageSeries

	modules     map[string]*ProcessingModule
	moduleOrder []string
}

func NewDocument(identifier string) *Document {
	return &Document{
		Identifier:        identifier,
		devices:           make(map[string]Device),
		acquisitionSeries: make(map[string]*ResponseSeries),
		modules:           make(map[string]*ProcessingModule),
	}
}

// AddAcquisition attaches a response series under the primary acquisition
// container. Duplicate names are rejected.
func (d *Document) AddAcquisition(series *ResponseSeries) error {
	if _, ok := d.acquisitionSeries[series.Name]; ok {
		return fmt.Errorf("acquisition already contains a series named %q", series.Name)
	}
	d.acquisitionSeries[series.Name] = series
	d.acquisitionOrder = append(d.acquisitionOrder, series.Name)
	return nil
}

// Acquisition looks up a response series in the acquisition container.
func (d *Document) Acquisition(name string) (*ResponseSeries, bool) {
	series, ok := d.acquisitionSeries[name]
	return series, ok
}

// AcquisitionNames returns the acquisition series names in insertion order.
func (d *Document) AcquisitionNames() []string {
	return d.acquisitionOrder
}

// AddAcquisitionPhotonSeries attaches an imaging stack to acquisition.
func (d *Document) AddAcquisitionPhotonSeries(series *PhotonSeries) {
	d.acquisitionPhoton = append(d.acquisitionPhoton, series)
}

func (d *Document) AcquisitionPhotonSeries() []*PhotonSeries {
	return d.acquisitionPhoton
}

// AddAcquisitionImageSeries attaches an external-file video series.
func (d *Document) AddAcquisitionImageSeries(series *ImageSeries) {
	d.acquisitionImages = append(d.acquisitionImages, series)
}

func (d *Document) AcquisitionImageSeries() []*ImageSeries {
	return d.acquisitionImages
}

// Module returns the named processing module, creating it with the given
// description when absent.
func (d *Document) Module(name string, description string) *ProcessingModule {
	if module, ok := d.modules[name]; ok {
		return module
	}
	module := &ProcessingModule{Name: name, Description: description}
	d.modules[name] = module
	d.moduleOrder = append(d.moduleOrder, name)
	return module
}

// ModuleNames returns the processing module names in insertion order.
func (d *Document) ModuleNames() []string {
	return d.moduleOrder
}

// nextSeriesName suffixes a numeric counter onto base until the name is
// free. The second wavelength of a dual session lands on "<base>2".
func nextSeriesName(base string, taken func(string) bool) string {
	name := base
	for n := 2; taken(name); n++ {
		name = fmt.Sprintf("%s%d", base, n)
	}
	return name
}
