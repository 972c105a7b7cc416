package fiberconv

import (
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

type SessionInfoHDF5 struct {
	identifier          [STRLEN]byte
	session_description [STRLEN]byte
	session_start_time  [STRLEN]byte
}

type SubjectHDF5 struct {
	subject_id    [STRLEN]byte
	date_of_birth [STRLEN]byte
	sex           [STRLEN]byte
	genotype      [STRLEN]byte
	strain        [STRLEN]byte
	species       [STRLEN]byte
}

type DeviceHDF5 struct {
	name         [STRLEN]byte
	kind         [STRLEN]byte
	description  [STRLEN]byte
	manufacturer [STRLEN]byte
}

// DeviceParamHDF5 carries the numeric properties of a device, one row per
// parameter, since each device kind has a different set.
type DeviceParamHDF5 struct {
	device [STRLEN]byte
	param  [STRLEN]byte
	value  float64
}

type FiberTableRowHDF5 struct {
	location          [STRLEN]byte
	ap                float64
	ml                float64
	dv                float64
	ap_idx            float64
	ml_idx            float64
	dv_idx            float64
	is_good_fiber     int32
	optical_fiber     [STRLEN]byte
	indicator         [STRLEN]byte
	excitation_source [STRLEN]byte
	photodetector     [STRLEN]byte
	dichroic_mirror   [STRLEN]byte
	excitation_filter [STRLEN]byte
	emission_filter   [STRLEN]byte
}

type SeriesInfoHDF5 struct {
	name          [STRLEN]byte
	description   [STRLEN]byte
	unit          [STRLEN]byte
	rate          float64
	starting_time float64
	regular       int32
}

// PhotonSeriesInfoHDF5 carries the imaging series header. The acquisition
// device goes in its own column instead of the unit field the fluorescence
// series use.
type PhotonSeriesInfoHDF5 struct {
	name          [STRLEN]byte
	description   [STRLEN]byte
	device        [STRLEN]byte
	rate          float64
	starting_time float64
	regular       int32
}

type IntervalRowHDF5 struct {
	start_time float64
	stop_time  float64
	event_type [STRLEN]byte
}

type RoiCentroidHDF5 struct {
	x float64
	y float64
}

type ImageSeriesHDF5 struct {
	name          [STRLEN]byte
	description   [STRLEN]byte
	external_file [STRLEN]byte
}

const STRLEN = 128

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func createFile(fname string) *hdf5.File {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		panic(err)
	}
	return f
}

func createGroup(file *hdf5.File, groupName string) *hdf5.Group {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		panic(err)
	}
	return g
}

func createSubGroup(group *hdf5.Group, groupName string) *hdf5.Group {
	g, err := group.CreateGroup(groupName)
	if err != nil {
		panic(err)
	}
	return g
}

// createFloatArray creates a [frames x columns] float64 dataset, unlimited
// along the frame axis.
func createFloatArray(group *hdf5.Group, name string, nColumns int) *hdf5.Dataset {
	dimsArray := []uint{0, uint(nColumns)}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDimsArray := []uint{uint(unlimitedDims), uint(nColumns)}

	chunks := []uint{1024, uint(nColumns)}
	return createArray(group, name, hdf5.T_NATIVE_DOUBLE, dimsArray, maxDimsArray, chunks)
}

// createFrameArray creates a [frames x rows x columns] dataset for imaging
// stacks and ROI masks, unlimited along the frame axis.
func createFrameArray(group *hdf5.Group, name string, datatype *hdf5.Datatype, nRows int, nColumns int) *hdf5.Dataset {
	dimsArray := []uint{0, uint(nRows), uint(nColumns)}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDimsArray := []uint{uint(unlimitedDims), uint(nRows), uint(nColumns)}

	chunks := []uint{1, uint(nRows), uint(nColumns)}
	return createArray(group, name, datatype, dimsArray, maxDimsArray, chunks)
}

func createArray(group *hdf5.Group, name string, datatype *hdf5.Datatype, dims []uint, maxDims []uint, chunks []uint) *hdf5.Dataset {
	file_spaceArray, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		panic(err)
	}

	// create property list
	plistArray, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		panic(err)
	}

	plistArray.SetChunk(chunks)
	plistArray.SetDeflate(configuration.CompressionLevel)

	// create the dataset
	dsetArray, err := group.CreateDatasetWith(name, datatype, file_spaceArray, plistArray)
	if err != nil {
		panic(err)
	}
	return dsetArray
}

func createTable(group *hdf5.Group, name string, datatype interface{}) *hdf5.Dataset {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		panic(err)
	}

	// create property list
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		panic(err)
	}

	chunks := []uint{1024}
	plist.SetChunk(chunks)
	plist.SetDeflate(configuration.CompressionLevel)

	// create the memory data type
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		panic(err)
	}

	// create the dataset
	dset, err := group.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		panic(err)
	}
	return dset
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowCounter int) {
	array := []T{data}
	writeArrayToTable(dataset, &array, rowCounter)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, rowCounter int) {
	length := uint(len(*data))
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		panic(err)
	}

	// extend
	rowsInFile := uint(rowCounter)
	newsize := []uint{rowsInFile + length}
	dataset.Resize(newsize)
	filespace := dataset.Space()

	start := []uint{rowsInFile}
	count := []uint{length}
	filespace.SelectHyperslab(start, nil, count, nil)

	err = dataset.WriteSubset(data, dataspace, filespace)
	if err != nil {
		panic(err)
	}

	dataspace.Close()
	filespace.Close()
}

// writeFloatRows appends nRows rows of nColumns values to a 2D float array.
func writeFloatRows(dataset *hdf5.Dataset, data *[]float64, startRow int, nRows int, nColumns int) {
	newsize := []uint{uint(startRow + nRows), uint(nColumns)}
	dataset.Resize(newsize)
	filespace := dataset.Space()

	start := []uint{uint(startRow), 0}
	count := []uint{uint(nRows), uint(nColumns)}
	filespace.SelectHyperslab(start, nil, count, nil)

	dataspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		panic(err)
	}

	err = dataset.WriteSubset(data, dataspace, filespace)
	if err != nil {
		panic(err)
	}

	dataspace.Close()
	filespace.Close()
}

// writeFrames appends frames of [nRows x nColumns] samples to a 3D array.
func writeFrames[T any](dataset *hdf5.Dataset, data *[]T, startFrame int, nFrames int, nRows int, nColumns int) {
	newsize := []uint{uint(startFrame + nFrames), uint(nRows), uint(nColumns)}
	dataset.Resize(newsize)
	filespace := dataset.Space()

	start := []uint{uint(startFrame), 0, 0}
	count := []uint{uint(nFrames), uint(nRows), uint(nColumns)}
	filespace.SelectHyperslab(start, nil, count, nil)

	dataspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		panic(err)
	}

	err = dataset.WriteSubset(data, dataspace, filespace)
	if err != nil {
		panic(err)
	}

	dataspace.Close()
	filespace.Close()
}
