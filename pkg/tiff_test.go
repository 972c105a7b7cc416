package fiberconv

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestTiff builds a little-endian uncompressed multi-page TIFF with one
// strip per page, strips first, then the IFD chain.
func writeTestTiff(t *testing.T, frames [][]uint16, width, height, bitsPerSample int) string {
	t.Helper()

	bytesPerSample := bitsPerSample / 8
	stripLen := width * height * bytesPerSample
	dataStart := 8
	ifdStart := dataStart + len(frames)*stripLen
	const ifdSize = 2 + 7*12 + 4

	var buffer bytes.Buffer
	order := binary.LittleEndian

	buffer.WriteString("II")
	binary.Write(&buffer, order, uint16(42))
	binary.Write(&buffer, order, uint32(ifdStart))

	for _, frame := range frames {
		for _, sample := range frame {
			if bitsPerSample == 8 {
				buffer.WriteByte(byte(sample))
			} else {
				binary.Write(&buffer, order, sample)
			}
		}
	}

	writeEntry := func(tag uint16, fieldType uint16, value uint32) {
		binary.Write(&buffer, order, tag)
		binary.Write(&buffer, order, fieldType)
		binary.Write(&buffer, order, uint32(1))
		if fieldType == 3 { // SHORT
			binary.Write(&buffer, order, uint16(value))
			binary.Write(&buffer, order, uint16(0))
		} else { // LONG
			binary.Write(&buffer, order, value)
		}
	}

	for i := range frames {
		binary.Write(&buffer, order, uint16(7))
		writeEntry(tagImageWidth, 3, uint32(width))
		writeEntry(tagImageLength, 3, uint32(height))
		writeEntry(tagBitsPerSample, 3, uint32(bitsPerSample))
		writeEntry(tagCompression, 3, 1)
		writeEntry(tagStripOffsets, 4, uint32(dataStart+i*stripLen))
		writeEntry(tagRowsPerStrip, 3, uint32(height))
		writeEntry(tagStripByteCounts, 4, uint32(stripLen))
		next := uint32(0)
		if i+1 < len(frames) {
			next = uint32(ifdStart + (i+1)*ifdSize)
		}
		binary.Write(&buffer, order, next)
	}

	path := filepath.Join(t.TempDir(), "stack.tif")
	require.NoError(t, os.WriteFile(path, buffer.Bytes(), 0o644))
	return path
}

func TestTiffImagingExtractor(t *testing.T) {
	frames := [][]uint16{
		{100, 200, 300, 400, 500, 600},
		{1, 2, 3, 4, 5, 6},
	}
	path := writeTestTiff(t, frames, 3, 2, 16)

	extractor, err := NewTiffImagingExtractor(path, 30)
	require.NoError(t, err)
	defer extractor.Close()

	meta := extractor.Metadata()
	require.Equal(t, 2, meta.NumFrames)
	require.Equal(t, 2, meta.NumRows)
	require.Equal(t, 3, meta.NumColumns)
	require.Equal(t, "uint16", meta.DtypeName)
	require.Equal(t, 30.0, extractor.SamplingFrequency())
	require.Nil(t, extractor.Times())

	read, err := extractor.Frames(0, 2)
	require.NoError(t, err)
	require.Equal(t, frames, read)

	read, err = extractor.Frames(1, 2)
	require.NoError(t, err)
	require.Equal(t, frames[1:], read)
}

func TestTiffImagingExtractorWidens8Bit(t *testing.T) {
	frames := [][]uint16{{10, 20, 30, 255}}
	path := writeTestTiff(t, frames, 2, 2, 8)

	extractor, err := NewTiffImagingExtractor(path, 15)
	require.NoError(t, err)
	defer extractor.Close()

	require.Equal(t, "uint8", extractor.Metadata().DtypeName)
	read, err := extractor.Frames(0, 1)
	require.NoError(t, err)
	require.Equal(t, frames, read)
}

func TestTiffImagingExtractorErrors(t *testing.T) {
	path := writeTestTiff(t, [][]uint16{{1}}, 1, 1, 16)

	_, err := NewTiffImagingExtractor(path, 0)
	var configErr *ErrConfiguration
	require.ErrorAs(t, err, &configErr)

	_, err = NewTiffImagingExtractor("stack.cxd", 30)
	var formatErr *ErrUnsupportedFormat
	require.ErrorAs(t, err, &formatErr)

	extractor, err := NewTiffImagingExtractor(path, 30)
	require.NoError(t, err)
	defer extractor.Close()
	_, err = extractor.Frames(0, 2)
	require.Error(t, err)
}

func TestTiffImagingExtractorRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04 not a tiff"), 0o644))

	_, err := NewTiffImagingExtractor(path, 30)
	require.Error(t, err)
}
