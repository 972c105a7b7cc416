package fiberconv

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// tiffPage is one IFD of a multi-page TIFF stack.
type tiffPage struct {
	width           int
	height          int
	bitsPerSample   int
	rowsPerStrip    int
	stripOffsets    []int64
	stripByteCounts []int64
}

// TiffImagingExtractor reads the motion-corrected imaging stacks, saved as
// uncompressed grayscale multi-page TIFF. The stacks carry no timing
// information, so the sampling frequency must be supplied.
type TiffImagingExtractor struct {
	path              string
	file              *os.File
	order             binary.ByteOrder
	pages             []tiffPage
	samplingFrequency float64
}

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
)

func NewTiffImagingExtractor(path string, samplingFrequency float64) (*TiffImagingExtractor, error) {
	if suffix := filepath.Ext(path); suffix != ".tif" && suffix != ".tiff" {
		return nil, &ErrUnsupportedFormat{Path: path, Suffix: suffix}
	}
	if samplingFrequency <= 0 {
		return nil, &ErrConfiguration{
			Parameter: "sampling_frequency",
			Reason:    "the TIFF stack carries no timing information, the sampling frequency must be provided",
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}

	extractor := &TiffImagingExtractor{path: path, file: file, samplingFrequency: samplingFrequency}
	if err := extractor.readDirectory(); err != nil {
		file.Close()
		return nil, err
	}
	return extractor, nil
}

func (e *TiffImagingExtractor) readDirectory() error {
	header := make([]byte, 8)
	if _, err := io.ReadFull(e.file, header); err != nil {
		return fmt.Errorf("error reading TIFF header of %q: %w", e.path, err)
	}
	switch {
	case header[0] == 'I' && header[1] == 'I':
		e.order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		e.order = binary.BigEndian
	default:
		return &ErrUnsupportedFormat{Path: e.path, Suffix: ".tif"}
	}
	if e.order.Uint16(header[2:4]) != 42 {
		return &ErrUnsupportedFormat{Path: e.path, Suffix: ".tif"}
	}

	offset := int64(e.order.Uint32(header[4:8]))
	for offset != 0 {
		page, next, err := e.readPage(offset)
		if err != nil {
			return err
		}
		e.pages = append(e.pages, page)
		offset = next
	}
	if len(e.pages) == 0 {
		return fmt.Errorf("no pages found in TIFF stack %q", e.path)
	}
	return nil
}

func (e *TiffImagingExtractor) readPage(offset int64) (tiffPage, int64, error) {
	var page tiffPage
	countBuffer := make([]byte, 2)
	if _, err := e.file.ReadAt(countBuffer, offset); err != nil {
		return page, 0, fmt.Errorf("error reading IFD at %d in %q: %w", offset, e.path, err)
	}
	numEntries := int(e.order.Uint16(countBuffer))

	entries := make([]byte, numEntries*12)
	if _, err := e.file.ReadAt(entries, offset+2); err != nil {
		return page, 0, fmt.Errorf("error reading IFD entries in %q: %w", e.path, err)
	}

	page.bitsPerSample = 16
	page.rowsPerStrip = -1
	for i := 0; i < numEntries; i++ {
		entry := entries[i*12 : (i+1)*12]
		tag := e.order.Uint16(entry[0:2])
		values, err := e.entryValues(entry)
		if err != nil {
			return page, 0, err
		}
		switch tag {
		case tagImageWidth:
			page.width = int(values[0])
		case tagImageLength:
			page.height = int(values[0])
		case tagBitsPerSample:
			page.bitsPerSample = int(values[0])
		case tagCompression:
			if values[0] != 1 {
				return page, 0, &ErrUnsupportedFormat{Path: e.path, Suffix: fmt.Sprintf("compression %d", values[0])}
			}
		case tagStripOffsets:
			page.stripOffsets = values
		case tagRowsPerStrip:
			page.rowsPerStrip = int(values[0])
		case tagStripByteCounts:
			page.stripByteCounts = values
		}
	}
	if page.rowsPerStrip < 0 {
		page.rowsPerStrip = page.height
	}
	if page.bitsPerSample != 8 && page.bitsPerSample != 16 {
		return page, 0, &ErrUnsupportedFormat{Path: e.path, Suffix: fmt.Sprintf("%d bits per sample", page.bitsPerSample)}
	}

	nextBuffer := make([]byte, 4)
	if _, err := e.file.ReadAt(nextBuffer, offset+2+int64(numEntries*12)); err != nil {
		return page, 0, fmt.Errorf("error reading next IFD offset in %q: %w", e.path, err)
	}
	return page, int64(e.order.Uint32(nextBuffer)), nil
}

func (e *TiffImagingExtractor) entryValues(entry []byte) ([]int64, error) {
	fieldType := e.order.Uint16(entry[2:4])
	count := int(e.order.Uint32(entry[4:8]))

	var size int
	switch fieldType {
	case 3: // SHORT
		size = 2
	case 4: // LONG
		size = 4
	default:
		return nil, fmt.Errorf("unsupported TIFF field type %d in %q", fieldType, e.path)
	}

	raw := entry[8:12]
	if count*size > 4 {
		raw = make([]byte, count*size)
		valueOffset := int64(e.order.Uint32(entry[8:12]))
		if _, err := e.file.ReadAt(raw, valueOffset); err != nil {
			return nil, fmt.Errorf("error reading TIFF tag values in %q: %w", e.path, err)
		}
	}

	values := make([]int64, count)
	for i := 0; i < count; i++ {
		if size == 2 {
			values[i] = int64(e.order.Uint16(raw[i*2 : i*2+2]))
		} else {
			values[i] = int64(e.order.Uint32(raw[i*4 : i*4+4]))
		}
	}
	return values, nil
}

func (e *TiffImagingExtractor) Metadata() ImagingMetadata {
	first := e.pages[0]
	return ImagingMetadata{
		NumFrames:         len(e.pages),
		SamplingFrequency: e.samplingFrequency,
		NumChannels:       1,
		NumPlanes:         1,
		NumRows:           first.height,
		NumColumns:        first.width,
		DtypeName:         fmt.Sprintf("uint%d", first.bitsPerSample),
		ChannelNames:      []string{"OpticalChannel"},
	}
}

func (e *TiffImagingExtractor) NumFrames() int {
	return len(e.pages)
}

func (e *TiffImagingExtractor) SamplingFrequency() float64 {
	return e.samplingFrequency
}

func (e *TiffImagingExtractor) Times() []float64 {
	return nil
}

func (e *TiffImagingExtractor) Frames(start, end int) ([][]uint16, error) {
	if start < 0 || end > len(e.pages) || start > end {
		return nil, &ErrShapeMismatch{What: "frame range", Want: len(e.pages), Got: end}
	}
	frames := make([][]uint16, 0, end-start)
	for _, page := range e.pages[start:end] {
		frame, err := e.readFrame(page)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (e *TiffImagingExtractor) readFrame(page tiffPage) ([]uint16, error) {
	frame := make([]uint16, page.width*page.height)
	position := 0
	for i, stripOffset := range page.stripOffsets {
		strip := make([]byte, page.stripByteCounts[i])
		if _, err := e.file.ReadAt(strip, stripOffset); err != nil {
			return nil, fmt.Errorf("error reading strip %d in %q: %w", i, e.path, err)
		}
		if page.bitsPerSample == 8 {
			for _, sample := range strip {
				frame[position] = uint16(sample)
				position++
			}
		} else {
			for j := 0; j+1 < len(strip); j += 2 {
				frame[position] = e.order.Uint16(strip[j : j+2])
				position++
			}
		}
	}
	return frame, nil
}

func (e *TiffImagingExtractor) Close() error {
	return e.file.Close()
}
