package fiberconv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// MatFile reads the lab's behavior/photometry session files. The acquisition
// software saves MATLAB v7.3 files, which are HDF5 containers, so the same
// binding used for the output document serves the read side.
type MatFile struct {
	Path string
	file *hdf5.File
}

// Matrix is a row-major [frames x fibers] numeric array. MATLAB stores arrays
// column-major, so reads from a MatFile transpose into this layout.
type Matrix struct {
	Data   []float64
	Frames int
	Fibers int
}

func (m *Matrix) At(frame, fiber int) float64 {
	return m.Data[frame*m.Fibers+fiber]
}

// Truncate returns a view over the first n frames, used by stub runs.
func (m *Matrix) Truncate(n int) *Matrix {
	if n >= m.Frames {
		return m
	}
	return &Matrix{Data: m.Data[:n*m.Fibers], Frames: n, Fibers: m.Fibers}
}

func OpenMatFile(path string) (*MatFile, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}
	if suffix := filepath.Ext(path); suffix != ".mat" {
		return nil, &ErrUnsupportedFormat{Path: path, Suffix: suffix}
	}
	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("error opening %q: %w", path, err)
	}
	return &MatFile{Path: path, file: file}, nil
}

func (f *MatFile) Close() error {
	return f.file.Close()
}

// Has reports whether the file contains a variable of the given name.
func (f *MatFile) Has(name string) bool {
	dset, err := f.file.OpenDataset(name)
	if err != nil {
		return false
	}
	dset.Close()
	return true
}

func (f *MatFile) openDataset(name string) (*hdf5.Dataset, []uint, error) {
	dset, err := f.file.OpenDataset(name)
	if err != nil {
		return nil, nil, &ErrMissingMetadata{Name: name, Table: f.Path}
	}
	space := dset.Space()
	dims, _, err := space.SimpleExtentDims()
	space.Close()
	if err != nil {
		dset.Close()
		return nil, nil, fmt.Errorf("error reading extent of %q in %q: %w", name, f.Path, err)
	}
	return dset, dims, nil
}

// Floats reads a 1D numeric variable. Missing variables surface immediately;
// partial session data is unsafe to write.
func (f *MatFile) Floats(name string) ([]float64, error) {
	dset, dims, err := f.openDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	length := uint(1)
	for _, dim := range dims {
		length *= dim
	}
	data := make([]float64, length)
	if length > 0 {
		if err := dset.Read(&data); err != nil {
			return nil, fmt.Errorf("error reading %q from %q: %w", name, f.Path, err)
		}
	}
	return data, nil
}

// Matrix reads a 2D numeric variable into row-major [frames x fibers] order.
// MATLAB dumps an (m, n) array as an HDF5 dataset with dims (n, m).
func (f *MatFile) Matrix(name string) (*Matrix, error) {
	dset, dims, err := f.openDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	if len(dims) != 2 {
		return nil, &ErrShapeMismatch{What: fmt.Sprintf("%q dimensions", name), Want: 2, Got: len(dims)}
	}
	fibers, frames := int(dims[0]), int(dims[1])
	flat := make([]float64, fibers*frames)
	if len(flat) > 0 {
		if err := dset.Read(&flat); err != nil {
			return nil, fmt.Errorf("error reading %q from %q: %w", name, f.Path, err)
		}
	}

	matrix := &Matrix{
		Data:   make([]float64, frames*fibers),
		Frames: frames,
		Fibers: fibers,
	}
	for j := 0; j < fibers; j++ {
		for i := 0; i < frames; i++ {
			matrix.Data[i*fibers+j] = flat[j*frames+i]
		}
	}
	return matrix, nil
}

// Cube reads a 3D numeric variable. The returned data stays in the on-disk
// layout with the innermost HDF5 dimension varying fastest; dims come back in
// MATLAB order, the reverse of the HDF5 extents.
func (f *MatFile) Cube(name string) ([]float64, [3]int, error) {
	dset, dims, err := f.openDataset(name)
	if err != nil {
		return nil, [3]int{}, err
	}
	defer dset.Close()

	if len(dims) != 3 {
		return nil, [3]int{}, &ErrShapeMismatch{What: fmt.Sprintf("%q dimensions", name), Want: 3, Got: len(dims)}
	}
	shape := [3]int{int(dims[2]), int(dims[1]), int(dims[0])}
	flat := make([]float64, shape[0]*shape[1]*shape[2])
	if len(flat) > 0 {
		if err := dset.Read(&flat); err != nil {
			return nil, [3]int{}, fmt.Errorf("error reading %q from %q: %w", name, f.Path, err)
		}
	}
	return flat, shape, nil
}

// String reads a MATLAB char array, stored as a uint16 dataset.
func (f *MatFile) String(name string) (string, error) {
	dset, dims, err := f.openDataset(name)
	if err != nil {
		return "", err
	}
	defer dset.Close()

	length := uint(1)
	for _, dim := range dims {
		length *= dim
	}
	chars := make([]uint16, length)
	if length > 0 {
		if err := dset.Read(&chars); err != nil {
			return "", fmt.Errorf("error reading %q from %q: %w", name, f.Path, err)
		}
	}
	var builder strings.Builder
	for _, char := range chars {
		builder.WriteRune(rune(char))
	}
	return builder.String(), nil
}
