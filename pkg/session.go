package fiberconv

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	imagingDeviceName = "HamamatsuMicroscope"

	rawImagingSeriesName        = "OnePhotonSeries"
	rawImagingSeriesDescription = "Raw one-photon imaging of the fiber bundle through the cranial window."

	correctedImagingSeriesName        = "OnePhotonSeriesMotionCorrected"
	correctedImagingSeriesDescription = "Motion corrected one-photon imaging of the fiber bundle."
)

// SessionOptions names the source files of one excitation wavelength. The
// imaging, behavior and video entries are optional; the photometry and TTL
// files are not.
type SessionOptions struct {
	FiberPhotometryFilePath string
	TTLFilePath             string
	TTLStreamName           string

	FiberLocationsFilePath string
	FiberLocations         []FiberLocation
	ExcitationWavelengthNM int
	Indicator              string

	RawImagingFilePath             string
	MotionCorrectedImagingFilePath string
	SamplingFrequency              float64
	FrameIndices                   []int

	BehaviorFilePath string
	VideoFilePaths   []string

	AlignedStartingTime *float64
}

// buildConverter wires the modality interfaces for one wavelength.
func buildConverter(opts SessionOptions) (*Converter, error) {
	photometry, err := NewFiberPhotometryInterface(opts.FiberPhotometryFilePath, opts.TTLFilePath, opts.TTLStreamName)
	if err != nil {
		return nil, err
	}
	converter := &Converter{FiberPhotometry: photometry}

	if opts.BehaviorFilePath != "" {
		converter.Behavior, err = NewBehaviorInterface(opts.BehaviorFilePath)
		if err != nil {
			return nil, err
		}
	}

	samplingFrequency := opts.SamplingFrequency
	if opts.RawImagingFilePath != "" {
		extractor, err := NewCxdImagingExtractor(opts.RawImagingFilePath, "", opts.SamplingFrequency, opts.FrameIndices)
		if err != nil {
			return nil, err
		}
		samplingFrequency = extractor.SamplingFrequency()
		converter.Imaging = NewImagingInterface(extractor,
			rawImagingSeriesName, rawImagingSeriesDescription, imagingDeviceName, ContainerAcquisition)
	}
	if opts.MotionCorrectedImagingFilePath != "" {
		if samplingFrequency <= 0 {
			return nil, &ErrConfiguration{
				Parameter: "sampling_frequency",
				Reason:    "motion corrected imaging needs the rate from the raw file or an explicit value",
			}
		}
		extractor, err := NewTiffImagingExtractor(opts.MotionCorrectedImagingFilePath, samplingFrequency)
		if err != nil {
			return nil, err
		}
		converter.ProcessedImaging = NewImagingInterface(extractor,
			correctedImagingSeriesName, correctedImagingSeriesDescription, imagingDeviceName, ContainerOphys)
	}

	for _, videoPath := range opts.VideoFilePaths {
		video, err := NewVideoInterface(videoPath)
		if err != nil {
			return nil, err
		}
		converter.Videos = append(converter.Videos, video)
	}

	if samplingFrequency > 0 {
		segmentation, err := NewSegmentationInterface(opts.FiberPhotometryFilePath, samplingFrequency, nil)
		if err != nil {
			return nil, err
		}
		converter.Segmentation = segmentation
	}

	converter.FiberLocations = opts.FiberLocations
	if converter.FiberLocations == nil && opts.FiberLocationsFilePath != "" {
		converter.FiberLocations, err = ReadFiberLocations(opts.FiberLocationsFilePath)
		if err != nil {
			return nil, err
		}
	}
	return converter, nil
}

// SingleWavelengthSessionToDocument converts one excitation wavelength into
// the document. Pass a nil document to start a session; the second wavelength
// of a dual-wavelength session passes the document of the first.
func SingleWavelengthSessionToDocument(doc *Document, opts SessionOptions,
	general *GeneralMetadata, photometryMeta *FiberPhotometryMetadata, subject *SubjectRecord) (*Document, error) {

	if opts.ExcitationWavelengthNM != 0 {
		if err := photometryMeta.UpdateForExcitation(opts.Indicator, opts.ExcitationWavelengthNM); err != nil {
			return nil, err
		}
	}

	converter, err := buildConverter(opts)
	if err != nil {
		return nil, err
	}

	startTime, err := converter.FiberPhotometry.SessionStartTime()
	if err != nil {
		return nil, err
	}

	if doc == nil {
		identifier := startTime.Format("20060102-150405")
		if subject != nil {
			identifier = fmt.Sprintf("%s-%s", subject.SubjectID, startTime.Format("20060102"))
		}
		doc = NewDocument(identifier)
		doc.SessionStartTime = startTime
		doc.Subject = subject
		if general != nil {
			doc.SessionDescription = general.SessionDescription
		}
	}

	alignment, err := converter.Align(AlignmentOptions{AlignedStartingTime: opts.AlignedStartingTime})
	if err != nil {
		return nil, err
	}
	if err := converter.Assemble(doc, alignment, photometryMeta, DefaultBehaviorMetadata()); err != nil {
		return nil, err
	}
	return doc, nil
}

// DualWavelengthSessionToDocument converts a session recorded with two
// interleaved excitation wavelengths. When both wavelengths share one raw
// imaging stack, the behavior logs carry the original frame numbers of each
// wavelength and the stack splits between them.
func DualWavelengthSessionToDocument(first, second SessionOptions,
	general *GeneralMetadata, photometryMeta *FiberPhotometryMetadata, subject *SubjectRecord) (*Document, error) {

	if first.RawImagingFilePath != "" && first.RawImagingFilePath == second.RawImagingFilePath {
		if first.BehaviorFilePath == "" || second.BehaviorFilePath == "" {
			return nil, &ErrConfiguration{
				Parameter: "behavior file paths",
				Reason:    "splitting a shared imaging stack needs the frame numbers from both behavior logs",
			}
		}
		firstNumbers, err := behaviorFrameNumbers(first.BehaviorFilePath)
		if err != nil {
			return nil, err
		}
		secondNumbers, err := behaviorFrameNumbers(second.BehaviorFilePath)
		if err != nil {
			return nil, err
		}
		omeMeta, err := ExtractOMEMetadata(first.RawImagingFilePath)
		if err != nil {
			return nil, err
		}
		numFrames := ParseOMEMetadata(omeMeta).NumFrames
		first.FrameIndices, second.FrameIndices, err = SplitDualWavelengthFrames(numFrames, firstNumbers, secondNumbers)
		if err != nil {
			return nil, err
		}
	}

	doc, err := SingleWavelengthSessionToDocument(nil, first, general, photometryMeta, subject)
	if err != nil {
		return nil, err
	}

	if second.AlignedStartingTime == nil {
		behavior, err := NewBehaviorInterface(second.BehaviorFilePath)
		if err != nil {
			return nil, err
		}
		timestamps, err := behavior.OriginalTimestamps()
		if err != nil {
			return nil, err
		}
		if len(timestamps) == 0 {
			return nil, &ErrShapeMismatch{What: "second wavelength behavior timestamps", Want: 1, Got: 0}
		}
		second.AlignedStartingTime = &timestamps[0]
	}
	return SingleWavelengthSessionToDocument(doc, second, general, photometryMeta, subject)
}

func behaviorFrameNumbers(behaviorFilePath string) ([]float64, error) {
	behavior, err := NewBehaviorInterface(behaviorFilePath)
	if err != nil {
		return nil, err
	}
	numbers, err := behavior.OrigFrameNumbers()
	if err != nil {
		return nil, err
	}
	if numbers == nil {
		return nil, &ErrMissingMetadata{Name: "orig_frame_numbers", Table: behaviorFilePath}
	}
	return numbers, nil
}

// SessionFilePath builds the output file name for a session. Stub runs are
// prefixed so they never shadow a full conversion.
func SessionFilePath(outputFolder, subjectID, date string) string {
	fileName := fmt.Sprintf("%s-%s.nwb", subjectID, strings.ReplaceAll(date, "/", "-"))
	if GetConfiguration().StubTest {
		fileName = "stub-" + fileName
	}
	return filepath.Join(outputFolder, fileName)
}
