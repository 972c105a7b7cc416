package fiberconv

import (
	"errors"
	"fmt"
	"time"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// frameWriteBatch is how many imaging frames move through memory per write.
const frameWriteBatch = 512

// Writer serializes a Document to an HDF5 container laid out like an NWB
// file: general metadata and devices, the fiber table, acquisition series and
// processing modules.
type Writer struct {
	File     *hdf5.File
	Filename string

	GeneralGroup     *hdf5.Group
	DevicesGroup     *hdf5.Group
	AcquisitionGroup *hdf5.Group
	ProcessingGroup  *hdf5.Group
	IntervalsGroup   *hdf5.Group

	openGroups   []*hdf5.Group
	openDatasets []*hdf5.Dataset
}

func NewWriter(filename string) *Writer {
	hdf5.SetStringLength(STRLEN)

	writer := &Writer{Filename: filename}
	logger.Info(fmt.Sprintf("Creating file %s", filename), "writer")
	writer.File = createFile(filename)
	writer.GeneralGroup = createGroup(writer.File, "general")
	writer.DevicesGroup = createSubGroup(writer.GeneralGroup, "devices")
	writer.AcquisitionGroup = createGroup(writer.File, "acquisition")
	writer.ProcessingGroup = createGroup(writer.File, "processing")
	writer.IntervalsGroup = createGroup(writer.File, "intervals")
	return writer
}

func (w *Writer) trackGroup(group *hdf5.Group) *hdf5.Group {
	w.openGroups = append(w.openGroups, group)
	return group
}

func (w *Writer) trackDataset(dataset *hdf5.Dataset) *hdf5.Dataset {
	w.openDatasets = append(w.openDatasets, dataset)
	return dataset
}

// WriteDocument serializes the whole document. The HDF5 helpers panic on
// library errors like the rest of the write path; the recover here turns
// them into a single error for the caller.
func (w *Writer) WriteDocument(doc *Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error writing %q: %v", w.Filename, r)
		}
	}()

	w.writeSessionInfo(doc)
	w.writeSubject(doc.Subject)
	w.writeDevices(doc)
	if doc.FiberTable != nil {
		w.writeFiberTable(doc.FiberTable)
	}

	for _, name := range doc.AcquisitionNames() {
		series, _ := doc.Acquisition(name)
		w.writeResponseSeries(w.AcquisitionGroup, series)
	}
	for _, series := range doc.AcquisitionPhotonSeries() {
		if err := w.writePhotonSeries(w.AcquisitionGroup, series); err != nil {
			return err
		}
	}
	for _, series := range doc.AcquisitionImageSeries() {
		w.writeImageSeries(w.AcquisitionGroup, series)
	}

	for _, name := range doc.ModuleNames() {
		module := doc.Module(name, "")
		if err := w.writeModule(module); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeSessionInfo(doc *Document) {
	table := w.trackDataset(createTable(w.GeneralGroup, "session", SessionInfoHDF5{}))
	writeEntryToTable(table, SessionInfoHDF5{
		identifier:          convertToHdf5String(doc.Identifier),
		session_description: convertToHdf5String(doc.SessionDescription),
		session_start_time:  convertToHdf5String(doc.SessionStartTime.Format(time.RFC3339)),
	}, 0)
}

func (w *Writer) writeSubject(subject *SubjectRecord) {
	if subject == nil {
		return
	}
	table := w.trackDataset(createTable(w.GeneralGroup, "subject", SubjectHDF5{}))
	writeEntryToTable(table, SubjectHDF5{
		subject_id:    convertToHdf5String(subject.SubjectID),
		date_of_birth: convertToHdf5String(subject.DateOfBirth.Format("2006-01-02")),
		sex:           convertToHdf5String(subject.Sex),
		genotype:      convertToHdf5String(subject.Genotype),
		strain:        convertToHdf5String(subject.Strain),
		species:       convertToHdf5String(subject.Species),
	}, 0)
}

// deviceParams flattens the numeric properties of a device record.
func deviceParams(device Device) (description string, manufacturer string, params []DeviceParamHDF5) {
	name := convertToHdf5String(device.DeviceName())
	param := func(label string, value float64) {
		params = append(params, DeviceParamHDF5{
			device: name,
			param:  convertToHdf5String(label),
			value:  value,
		})
	}

	switch d := device.(type) {
	case OpticalFiber:
		param("numerical_aperture", d.NumericalAperture)
		param("core_diameter_in_um", d.CoreDiameterUM)
		return d.Description, d.Manufacturer, params
	case Indicator:
		return d.Description, d.Manufacturer, params
	case ExcitationSource:
		param("excitation_wavelength_in_nm", d.ExcitationWavelengthNM)
		return d.Description, "", params
	case Photodetector:
		return d.Description, "", params
	case DichroicMirror:
		param("cut_on_wavelength_in_nm", d.CutOnWavelengthNM)
		param("cut_off_wavelength_in_nm", d.CutOffWavelengthNM)
		return d.Description, "", params
	case BandOpticalFilter:
		param("center_wavelength_in_nm", d.CenterWavelengthNM)
		param("bandwidth_in_nm", d.BandwidthNM)
		return d.Description, "", params
	}
	return "", "", params
}

func (w *Writer) writeDevices(doc *Document) {
	deviceTable := w.trackDataset(createTable(w.DevicesGroup, "devices", DeviceHDF5{}))
	paramsTable := w.trackDataset(createTable(w.DevicesGroup, "parameters", DeviceParamHDF5{}))

	paramCounter := 0
	for i, name := range doc.DeviceNames() {
		device, _ := doc.GetDevice(name)
		description, manufacturer, params := deviceParams(device)
		writeEntryToTable(deviceTable, DeviceHDF5{
			name:         convertToHdf5String(name),
			kind:         convertToHdf5String(device.DeviceKind().String()),
			description:  convertToHdf5String(description),
			manufacturer: convertToHdf5String(manufacturer),
		}, i)
		if len(params) > 0 {
			writeArrayToTable(paramsTable, &params, paramCounter)
			paramCounter += len(params)
		}
	}
}

func (w *Writer) writeFiberTable(table *FiberPhotometryTable) {
	// The array MUST be allocated at creation, if not, HDF5 will panic
	// doing appends will not work
	rows := make([]FiberTableRowHDF5, len(table.Rows))
	for i, row := range table.Rows {
		isGood := int32(0)
		if row.IsGoodFiber {
			isGood = 1
		}
		rows[i] = FiberTableRowHDF5{
			location:          convertToHdf5String(row.Location),
			ap:                row.Coordinates[0],
			ml:                row.Coordinates[1],
			dv:                row.Coordinates[2],
			ap_idx:            row.AllenAtlasCoordinates[0],
			ml_idx:            row.AllenAtlasCoordinates[1],
			dv_idx:            row.AllenAtlasCoordinates[2],
			is_good_fiber:     isGood,
			optical_fiber:     convertToHdf5String(row.OpticalFiber),
			indicator:         convertToHdf5String(row.Indicator),
			excitation_source: convertToHdf5String(row.ExcitationSource),
			photodetector:     convertToHdf5String(row.Photodetector),
			dichroic_mirror:   convertToHdf5String(row.DichroicMirror),
			excitation_filter: convertToHdf5String(row.ExcitationFilter),
			emission_filter:   convertToHdf5String(row.EmissionFilter),
		}
	}
	dset := w.trackDataset(createTable(w.GeneralGroup, "fiber_photometry_table", FiberTableRowHDF5{}))
	writeArrayToTable(dset, &rows, 0)
}

func (w *Writer) writeSeriesInfo(group *hdf5.Group, name, description, unit string, timing Timing) {
	regular := int32(0)
	if timing.IsRegular() {
		regular = 1
	}
	info := w.trackDataset(createTable(group, "info", SeriesInfoHDF5{}))
	writeEntryToTable(info, SeriesInfoHDF5{
		name:          convertToHdf5String(name),
		description:   convertToHdf5String(description),
		unit:          convertToHdf5String(unit),
		rate:          timing.Rate,
		starting_time: timing.StartingTime,
		regular:       regular,
	}, 0)

	w.writeIrregularTimestamps(group, timing)
}

func (w *Writer) writeIrregularTimestamps(group *hdf5.Group, timing Timing) {
	if !timing.IsRegular() && timing.Timestamps != nil {
		timestamps := timing.Timestamps
		dset := w.trackDataset(createTable(group, "timestamps", float64(0)))
		writeArrayToTable(dset, &timestamps, 0)
	}
}

func (w *Writer) writeResponseSeries(parent *hdf5.Group, series *ResponseSeries) {
	group := w.trackGroup(createSubGroup(parent, series.Name))
	w.writeSeriesInfo(group, series.Name, series.Description, series.Unit, series.Timing)

	if series.Region != nil {
		// The row indices are small; int32 keeps the region readable from
		// MATLAB without conversion.
		region := make([]int32, len(series.Region.Rows))
		for i, row := range series.Region.Rows {
			region[i] = int32(row)
		}
		dset := w.trackDataset(createTable(group, "fiber_table_region", int32(0)))
		writeArrayToTable(dset, &region, 0)
	}

	data := w.trackDataset(createFloatArray(group, "data", series.Data.Fibers))
	writeFloatRows(data, &series.Data.Data, 0, series.Data.Frames, series.Data.Fibers)
}

func (w *Writer) writeTimeSeries(parent *hdf5.Group, series *TimeSeries) {
	group := w.trackGroup(createSubGroup(parent, series.Name))
	w.writeSeriesInfo(group, series.Name, series.Description, series.Unit, Timing{Timestamps: series.Timestamps})

	frames := len(series.Data) / series.Columns
	data := w.trackDataset(createFloatArray(group, "data", series.Columns))
	writeFloatRows(data, &series.Data, 0, frames, series.Columns)
}

func (w *Writer) writePhotonSeries(parent *hdf5.Group, series *PhotonSeries) error {
	group := w.trackGroup(createSubGroup(parent, series.Name))
	regular := int32(0)
	if series.Timing.IsRegular() {
		regular = 1
	}
	info := w.trackDataset(createTable(group, "info", PhotonSeriesInfoHDF5{}))
	writeEntryToTable(info, PhotonSeriesInfoHDF5{
		name:          convertToHdf5String(series.Name),
		description:   convertToHdf5String(series.Description),
		device:        convertToHdf5String(series.DeviceName),
		rate:          series.Timing.Rate,
		starting_time: series.Timing.StartingTime,
		regular:       regular,
	}, 0)
	w.writeIrregularTimestamps(group, series.Timing)

	meta := series.Extractor.Metadata()
	numFrames := meta.NumFrames
	if limit := stubFrameLimit(); limit > 0 && numFrames > limit {
		numFrames = limit
	}

	data := w.trackDataset(createFrameArray(group, "data", hdf5.T_NATIVE_UINT16, meta.NumRows, meta.NumColumns))
	for start := 0; start < numFrames; start += frameWriteBatch {
		end := start + frameWriteBatch
		if end > numFrames {
			end = numFrames
		}
		frames, err := series.Extractor.Frames(start, end)
		if err != nil {
			return err
		}
		flat := make([]uint16, 0, len(frames)*meta.NumRows*meta.NumColumns)
		for _, frame := range frames {
			flat = append(flat, frame...)
		}
		writeFrames(data, &flat, start, len(frames), meta.NumRows, meta.NumColumns)
	}
	return nil
}

func (w *Writer) writeImageSeries(parent *hdf5.Group, series *ImageSeries) {
	group := w.trackGroup(createSubGroup(parent, series.Name))
	info := w.trackDataset(createTable(group, "info", ImageSeriesHDF5{}))
	writeEntryToTable(info, ImageSeriesHDF5{
		name:          convertToHdf5String(series.Name),
		description:   convertToHdf5String(series.Description),
		external_file: convertToHdf5String(series.ExternalFile),
	}, 0)

	timestamps := series.Timestamps
	dset := w.trackDataset(createTable(group, "timestamps", float64(0)))
	writeArrayToTable(dset, &timestamps, 0)
}

func (w *Writer) writeIntervals(intervals *TimeIntervals) {
	rows := make([]IntervalRowHDF5, len(intervals.Rows))
	for i, row := range intervals.Rows {
		rows[i] = IntervalRowHDF5{
			start_time: row.StartTime,
			stop_time:  row.StopTime,
			event_type: convertToHdf5String(row.EventType),
		}
	}
	dset := w.trackDataset(createTable(w.IntervalsGroup, intervals.Name, IntervalRowHDF5{}))
	writeArrayToTable(dset, &rows, 0)
}

func (w *Writer) writeSegmentation(parent *hdf5.Group, segmentation *PlaneSegmentation) {
	group := w.trackGroup(createSubGroup(parent, segmentation.Name))

	masks := w.trackDataset(createFrameArray(group, "image_masks", hdf5.T_NATIVE_DOUBLE, segmentation.NumRows, segmentation.NumColumns))
	maskData := segmentation.ImageMasks
	writeFrames(masks, &maskData, 0, segmentation.NumRois, segmentation.NumRows, segmentation.NumColumns)

	centroids := make([]RoiCentroidHDF5, len(segmentation.RoiCentroids))
	for i, centroid := range segmentation.RoiCentroids {
		centroids[i] = RoiCentroidHDF5{x: centroid[0], y: centroid[1]}
	}
	centroidTable := w.trackDataset(createTable(group, "roi_centroids", RoiCentroidHDF5{}))
	writeArrayToTable(centroidTable, &centroids, 0)

	accepted := make([]int32, len(segmentation.AcceptedRois))
	for i, roi := range segmentation.AcceptedRois {
		accepted[i] = int32(roi)
	}
	acceptedTable := w.trackDataset(createTable(group, "accepted_rois", int32(0)))
	writeArrayToTable(acceptedTable, &accepted, 0)
}

func (w *Writer) writeModule(module *ProcessingModule) error {
	group := w.trackGroup(createSubGroup(w.ProcessingGroup, module.Name))

	for _, series := range module.ResponseSeries {
		w.writeResponseSeries(group, series)
	}
	for _, series := range module.TimeSeries {
		w.writeTimeSeries(group, series)
	}
	for _, series := range module.PhotonSeries {
		if err := w.writePhotonSeries(group, series); err != nil {
			return err
		}
	}
	for _, segmentation := range module.Segmentations {
		w.writeSegmentation(group, segmentation)
	}
	for _, intervals := range module.Intervals {
		w.writeIntervals(intervals)
	}
	return nil
}

func (w *Writer) Close() error {
	logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "writer")
	var errs []error

	for _, dataset := range w.openDatasets {
		if err := dataset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing dataset: %w", err))
		}
	}
	for i := len(w.openGroups) - 1; i >= 0; i-- {
		if err := w.openGroups[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing group: %w", err))
		}
	}
	if err := w.DevicesGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing devices group: %w", err))
	}
	if err := w.GeneralGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing general group: %w", err))
	}
	if err := w.AcquisitionGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing acquisition group: %w", err))
	}
	if err := w.ProcessingGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing processing group: %w", err))
	}
	if err := w.IntervalsGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing intervals group: %w", err))
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
