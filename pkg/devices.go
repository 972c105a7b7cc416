package fiberconv

// DeviceKind enumerates the closed set of photometry hardware component types.
type DeviceKind int

const (
	KindOpticalFiber DeviceKind = iota
	KindIndicator
	KindExcitationSource
	KindPhotodetector
	KindDichroicMirror
	KindBandOpticalFilter
)

func (k DeviceKind) String() string {
	switch k {
	case KindOpticalFiber:
		return "OpticalFiber"
	case KindIndicator:
		return "Indicator"
	case KindExcitationSource:
		return "ExcitationSource"
	case KindPhotodetector:
		return "Photodetector"
	case KindDichroicMirror:
		return "DichroicMirror"
	case KindBandOpticalFilter:
		return "BandOpticalFilter"
	default:
		return "Unknown"
	}
}

// Device is a named hardware component record. Device names are unique within
// a session document.
type Device interface {
	DeviceName() string
	DeviceKind() DeviceKind
}

type OpticalFiber struct {
	Name              string  `yaml:"name"`
	Description       string  `yaml:"description"`
	Manufacturer      string  `yaml:"manufacturer"`
	Model             string  `yaml:"model"`
	NumericalAperture float64 `yaml:"numerical_aperture"`
	CoreDiameterUM    float64 `yaml:"core_diameter_in_um"`
}

func (d OpticalFiber) DeviceName() string     { return d.Name }
func (d OpticalFiber) DeviceKind() DeviceKind { return KindOpticalFiber }

type Indicator struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Manufacturer string `yaml:"manufacturer"`
	Label        string `yaml:"label"`
}

func (d Indicator) DeviceName() string     { return d.Name }
func (d Indicator) DeviceKind() DeviceKind { return KindIndicator }

type ExcitationSource struct {
	Name                   string  `yaml:"name"`
	Description            string  `yaml:"description"`
	ExcitationWavelengthNM float64 `yaml:"excitation_wavelength_in_nm"`
}

func (d ExcitationSource) DeviceName() string     { return d.Name }
func (d ExcitationSource) DeviceKind() DeviceKind { return KindExcitationSource }

type Photodetector struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func (d Photodetector) DeviceName() string     { return d.Name }
func (d Photodetector) DeviceKind() DeviceKind { return KindPhotodetector }

type DichroicMirror struct {
	Name               string  `yaml:"name"`
	Description        string  `yaml:"description"`
	CutOnWavelengthNM  float64 `yaml:"cut_on_wavelength_in_nm"`
	CutOffWavelengthNM float64 `yaml:"cut_off_wavelength_in_nm"`
}

func (d DichroicMirror) DeviceName() string     { return d.Name }
func (d DichroicMirror) DeviceKind() DeviceKind { return KindDichroicMirror }

type BandOpticalFilter struct {
	Name               string  `yaml:"name"`
	Description        string  `yaml:"description"`
	CenterWavelengthNM float64 `yaml:"center_wavelength_in_nm"`
	BandwidthNM        float64 `yaml:"bandwidth_in_nm"`
	FilterType         string  `yaml:"filter_type"`
}

func (d BandOpticalFilter) DeviceName() string     { return d.Name }
func (d BandOpticalFilter) DeviceKind() DeviceKind { return KindBandOpticalFilter }

// AddDevice registers a device into the document's device namespace, keyed by
// name. Registering a name that already exists is a no-op, never an overwrite.
func (d *Document) AddDevice(device Device) {
	name := device.DeviceName()
	if _, ok := d.devices[name]; ok {
		return
	}
	d.devices[name] = device
	d.deviceOrder = append(d.deviceOrder, name)
}

// GetDevice looks a device up by name.
func (d *Document) GetDevice(name string) (Device, bool) {
	device, ok := d.devices[name]
	return device, ok
}

// DeviceNames returns the registered device names in insertion order.
func (d *Document) DeviceNames() []string {
	return d.deviceOrder
}

// resolveDevice looks up a named device record of the given kind in the
// metadata tables and registers it into the document. A dangling device
// reference corrupts the fiber table row, so a missing record surfaces
// immediately.
func resolveDevice(doc *Document, meta *FiberPhotometryMetadata, kind DeviceKind, name string) error {
	device, err := meta.Device(kind, name)
	if err != nil {
		return err
	}
	doc.AddDevice(device)
	return nil
}
