package fiberconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddDeviceIdempotent(t *testing.T) {
	doc := NewDocument("test")

	first := ExcitationSource{Name: "ExcitationSource470", Description: "Blue LED.", ExcitationWavelengthNM: 470}
	doc.AddDevice(first)
	// A second registration under the same name never overwrites
	doc.AddDevice(ExcitationSource{Name: "ExcitationSource470", Description: "Different description."})

	device, ok := doc.GetDevice("ExcitationSource470")
	require.True(t, ok)
	require.Equal(t, first, device)
	require.Equal(t, []string{"ExcitationSource470"}, doc.DeviceNames())
}

func TestDeviceNamesInsertionOrder(t *testing.T) {
	doc := NewDocument("test")
	doc.AddDevice(Photodetector{Name: "Photodetector1"})
	doc.AddDevice(OpticalFiber{Name: "OpticalFiber1"})
	doc.AddDevice(Indicator{Name: "dLight1.3b"})

	require.Equal(t, []string{"Photodetector1", "OpticalFiber1", "dLight1.3b"}, doc.DeviceNames())
}

func TestResolveDevice(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	doc := NewDocument("test")

	require.NoError(t, resolveDevice(doc, meta, KindBandOpticalFilter, "OpticalFilter470"))
	_, ok := doc.GetDevice("OpticalFilter470")
	require.True(t, ok)

	require.Error(t, resolveDevice(doc, meta, KindBandOpticalFilter, "OpticalFilter405"))
}
