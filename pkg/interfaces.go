package fiberconv

import (
	"fmt"
	"time"
)

// starttime is saved by the acquisition software as a MATLAB datestr.
const sessionStartTimeLayout = "02-Jan-2006 15:04:05"

// stubFrameLimit returns the frame prefix length for stub runs, or 0 when the
// full session converts.
func stubFrameLimit() int {
	config := GetConfiguration()
	if !config.StubTest {
		return 0
	}
	return config.StubFrames
}

func truncateTimestamps(timestamps []float64) []float64 {
	if limit := stubFrameLimit(); limit > 0 && len(timestamps) > limit {
		return timestamps[:limit]
	}
	return timestamps
}

// FiberPhotometryInterface reads the fluorescence traces of one excitation
// wavelength and the TTL channel that timestamps its frames. The session
// start time comes from the TTL file and is read at construction, so a bad
// session file fails before any conversion work starts.
type FiberPhotometryInterface struct {
	FilePath      string
	TTLFilePath   string
	TTLStreamName string

	startTime string
	aligned   []float64
}

func NewFiberPhotometryInterface(filePath, ttlFilePath, ttlStreamName string) (*FiberPhotometryInterface, error) {
	if ttlStreamName == "" {
		ttlStreamName = "ttlIn1"
	}
	file, err := OpenMatFile(filePath)
	if err != nil {
		return nil, err
	}
	file.Close()

	ttlFile, err := OpenMatFile(ttlFilePath)
	if err != nil {
		return nil, err
	}
	defer ttlFile.Close()
	startTime, err := ttlFile.String("starttime")
	if err != nil {
		return nil, err
	}

	return &FiberPhotometryInterface{
		FilePath:      filePath,
		TTLFilePath:   ttlFilePath,
		TTLStreamName: ttlStreamName,
		startTime:     startTime,
	}, nil
}

// SessionStartTime parses the acquisition start time in the configured
// timezone.
func (i *FiberPhotometryInterface) SessionStartTime() (time.Time, error) {
	location, err := time.LoadLocation(GetConfiguration().Timezone)
	if err != nil {
		return time.Time{}, &ErrConfiguration{Parameter: "timezone", Reason: err.Error()}
	}
	startTime, err := time.ParseInLocation(sessionStartTimeLayout, i.startTime, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing session start time %q: %w", i.startTime, err)
	}
	return startTime, nil
}

// OriginalTimestamps maps the rising edges of the TTL channel through the
// board clock. One rising edge per acquired frame.
func (i *FiberPhotometryInterface) OriginalTimestamps() ([]float64, error) {
	ttlFile, err := OpenMatFile(i.TTLFilePath)
	if err != nil {
		return nil, err
	}
	defer ttlFile.Close()

	trace, err := ttlFile.Floats(i.TTLStreamName)
	if err != nil {
		return nil, err
	}
	timestamps, err := ttlFile.Floats("timestamp")
	if err != nil {
		return nil, err
	}
	return FrameTimestamps(trace, timestamps)
}

// SetAlignedTimestamps overrides the native timeline. Once set, it wins.
func (i *FiberPhotometryInterface) SetAlignedTimestamps(timestamps []float64) {
	i.aligned = timestamps
}

func (i *FiberPhotometryInterface) Timestamps() ([]float64, error) {
	if i.aligned != nil {
		return truncateTimestamps(i.aligned), nil
	}
	timestamps, err := i.OriginalTimestamps()
	if err != nil {
		return nil, err
	}
	return truncateTimestamps(timestamps), nil
}

// AddToDocument attaches the raw fluorescence to acquisition and the baseline
// and baseline-corrected traces to the ophys module. All three series share
// the raw series' table region and timeline.
func (i *FiberPhotometryInterface) AddToDocument(doc *Document, meta *FiberPhotometryMetadata, fiberLocations []FiberLocation) error {
	config := GetConfiguration()

	file, err := OpenMatFile(i.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	timestamps, err := i.Timestamps()
	if err != nil {
		return err
	}

	raw, err := file.Matrix("F")
	if err != nil {
		return err
	}
	raw = raw.Truncate(len(timestamps))
	logger.Info(fmt.Sprintf("Adding fluorescence traces (%d frames, %d fibers)", raw.Frames, raw.Fibers), "photometry")

	rawName := RawSeriesName
	if len(meta.ResponseSeries) > 0 {
		rawName = meta.ResponseSeries[0].Name
		// The second wavelength of a dual session reuses the same metadata
		// entry, so its series take a numeric suffix
		rawName = nextSeriesName(rawName, func(name string) bool {
			_, ok := doc.Acquisition(name)
			return ok
		})
		meta.ResponseSeries[0].Name = rawName
	}
	err = AddFiberPhotometrySeries(doc, meta, raw, timestamps, rawName, fiberLocations,
		SeriesOptions{Container: ContainerAcquisition})
	if err != nil {
		return err
	}

	baseline, err := file.Matrix(config.BaselineField)
	if err != nil {
		return err
	}
	baselineMeta, err := meta.DerivedSeries("Baseline", "Baseline")
	if err != nil {
		return err
	}
	err = AddFiberPhotometrySeries(doc, meta, baseline.Truncate(len(timestamps)), timestamps,
		baselineMeta.Name, fiberLocations, SeriesOptions{Container: ContainerOphys})
	if err != nil {
		return err
	}

	corrected, err := file.Matrix(config.CorrectedField)
	if err != nil {
		return err
	}
	correctedMeta, err := meta.DerivedSeries("DfOverF", "Baseline corrected (DF/F)")
	if err != nil {
		return err
	}
	return AddFiberPhotometrySeries(doc, meta, corrected.Truncate(len(timestamps)), timestamps,
		correctedMeta.Name, fiberLocations, SeriesOptions{Container: ContainerOphys})
}

// BehaviorInterface reads the processed behavior file of one excitation
// wavelength.
type BehaviorInterface struct {
	FilePath string

	aligned []float64
}

func NewBehaviorInterface(filePath string) (*BehaviorInterface, error) {
	file, err := OpenMatFile(filePath)
	if err != nil {
		return nil, err
	}
	file.Close()
	return &BehaviorInterface{FilePath: filePath}, nil
}

func (i *BehaviorInterface) OriginalTimestamps() ([]float64, error) {
	file, err := OpenMatFile(i.FilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Floats("timestamp")
}

func (i *BehaviorInterface) SetAlignedTimestamps(timestamps []float64) {
	i.aligned = timestamps
}

func (i *BehaviorInterface) Timestamps() ([]float64, error) {
	if i.aligned != nil {
		return truncateTimestamps(i.aligned), nil
	}
	timestamps, err := i.OriginalTimestamps()
	if err != nil {
		return nil, err
	}
	return truncateTimestamps(timestamps), nil
}

// OrigFrameNumbers reads the raw-stack frame numbers (1-based) this
// wavelength kept after de-interleaving. Absent in single-wavelength files.
func (i *BehaviorInterface) OrigFrameNumbers() ([]float64, error) {
	file, err := OpenMatFile(i.FilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if !file.Has("orig_frame_numbers") {
		return nil, nil
	}
	return file.Floats("orig_frame_numbers")
}

func (i *BehaviorInterface) AddToDocument(doc *Document, meta BehaviorMetadata) error {
	file, err := OpenMatFile(i.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	timestamps, err := i.Timestamps()
	if err != nil {
		return err
	}
	if err := AddVelocitySignals(doc, meta, file, timestamps, GetConfiguration().BallDiameter); err != nil {
		return err
	}
	return AddBinarySignals(doc, meta, file, timestamps)
}

// ImagingInterface attaches an imaging stack (raw .cxd or motion-corrected
// .tif) as a photon series.
type ImagingInterface struct {
	SeriesName        string
	SeriesDescription string
	DeviceName        string
	Container         string

	extractor            ImagingExtractor
	alignedStartingTime  float64
	hasAlignedStartValue bool
}

func NewImagingInterface(extractor ImagingExtractor, seriesName, description, deviceName, container string) *ImagingInterface {
	return &ImagingInterface{
		SeriesName:        seriesName,
		SeriesDescription: description,
		DeviceName:        deviceName,
		Container:         container,
		extractor:         extractor,
	}
}

// SetAlignedStartingTime shifts the series onto the session clock.
func (i *ImagingInterface) SetAlignedStartingTime(startingTime float64) {
	i.alignedStartingTime = startingTime
	i.hasAlignedStartValue = true
}

func (i *ImagingInterface) Extractor() ImagingExtractor {
	return i.extractor
}

func (i *ImagingInterface) AddToDocument(doc *Document) error {
	timing := Timing{Rate: i.extractor.SamplingFrequency()}
	if i.hasAlignedStartValue {
		timing.StartingTime = i.alignedStartingTime
	}
	if times := i.extractor.Times(); times != nil {
		aligned := make([]float64, len(times))
		shift := 0.0
		if i.hasAlignedStartValue && len(times) > 0 {
			shift = i.alignedStartingTime - times[0]
		}
		for j, t := range times {
			aligned[j] = t + shift
		}
		timing = Timing{Timestamps: truncateTimestamps(aligned)}
	}

	series := &PhotonSeries{
		Name:        i.SeriesName,
		Description: i.SeriesDescription,
		Extractor:   i.extractor,
		Timing:      timing,
		DeviceName:  i.DeviceName,
	}
	switch i.Container {
	case ContainerOphys:
		module := doc.Module("ophys", ophysModuleDescription)
		series.Name = nextSeriesName(i.SeriesName, func(name string) bool {
			for _, existing := range module.PhotonSeries {
				if existing.Name == name {
					return true
				}
			}
			return false
		})
		module.PhotonSeries = append(module.PhotonSeries, series)
	case "", ContainerAcquisition:
		series.Name = nextSeriesName(i.SeriesName, func(name string) bool {
			for _, existing := range doc.AcquisitionPhotonSeries() {
				if existing.Name == name {
					return true
				}
			}
			return false
		})
		doc.AddAcquisitionPhotonSeries(series)
	default:
		return &ErrConfiguration{
			Parameter: "container",
			Reason:    fmt.Sprintf("unknown parent container %q", i.Container),
		}
	}
	return nil
}

// VideoInterface registers a behavior camera recording by external file
// reference. Timestamps come from the TTL channel the camera was wired to
// and are provided by the aligner.
type VideoInterface struct {
	FilePath      string
	TTLStreamName string

	aligned []float64
}

func NewVideoInterface(filePath string) (*VideoInterface, error) {
	streamName, err := TTLStreamFromVideoPath(filePath)
	if err != nil {
		return nil, err
	}
	return &VideoInterface{FilePath: filePath, TTLStreamName: streamName}, nil
}

func (i *VideoInterface) SetAlignedTimestamps(timestamps []float64) {
	i.aligned = timestamps
}

func (i *VideoInterface) AddToDocument(doc *Document, name string) error {
	if i.aligned == nil {
		return &ErrConfiguration{
			Parameter: "video timestamps",
			Reason:    fmt.Sprintf("video %q was not aligned before assembly", i.FilePath),
		}
	}
	doc.AddAcquisitionImageSeries(&ImageSeries{
		Name:         name,
		Description:  "Behavioral video of the running mouse recorded during the session.",
		ExternalFile: i.FilePath,
		Timestamps:   truncateTimestamps(i.aligned),
	})
	return nil
}

// SegmentationInterface attaches the fiber ROI masks to the ophys module.
type SegmentationInterface struct {
	extractor *SegmentationExtractor
}

func NewSegmentationInterface(filePath string, samplingFrequency float64, acceptedList []int) (*SegmentationInterface, error) {
	extractor, err := NewSegmentationExtractor(filePath, samplingFrequency, acceptedList)
	if err != nil {
		return nil, err
	}
	return &SegmentationInterface{extractor: extractor}, nil
}

func (i *SegmentationInterface) AddToDocument(doc *Document, name string, description string) error {
	extractor := i.extractor
	numRows, numColumns := extractor.ImageSize()

	masks := make([]float64, 0, extractor.NumROIs()*numRows*numColumns)
	centroids := make([][2]float64, extractor.NumROIs())
	for roi := 0; roi < extractor.NumROIs(); roi++ {
		mask, err := extractor.ImageMask(roi)
		if err != nil {
			return err
		}
		masks = append(masks, mask...)
		centroids[roi] = extractor.ROILocation(roi)
	}

	module := doc.Module("ophys", ophysModuleDescription)
	name = nextSeriesName(name, func(candidate string) bool {
		for _, existing := range module.Segmentations {
			if existing.Name == candidate {
				return true
			}
		}
		return false
	})
	module.Segmentations = append(module.Segmentations, &PlaneSegmentation{
		Name:         name,
		Description:  description,
		ImageMasks:   masks,
		NumRois:      extractor.NumROIs(),
		NumRows:      numRows,
		NumColumns:   numColumns,
		RoiCentroids: centroids,
		AcceptedRois: extractor.AcceptedList(),
	})
	return nil
}
