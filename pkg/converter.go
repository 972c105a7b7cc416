package fiberconv

import "fmt"

// Converter owns the modality interfaces of one excitation wavelength and
// runs alignment and assembly over them. A Converter is built per conversion
// run; re-running a session builds a fresh one.
type Converter struct {
	FiberPhotometry  *FiberPhotometryInterface
	Behavior         *BehaviorInterface
	Imaging          *ImagingInterface
	ProcessedImaging *ImagingInterface
	Videos           []*VideoInterface
	Segmentation     *SegmentationInterface

	FiberLocations []FiberLocation
}

// AlignmentOptions controls how the session clock anchors. The second
// wavelength of a dual-wavelength session passes the first timestamp of its
// own behavior log explicitly.
type AlignmentOptions struct {
	AlignedStartingTime *float64
}

// Alignment is the computed session timeline. Assemble consumes it; reading
// unaligned timestamps during assembly is impossible because assembly only
// sees this value.
type Alignment struct {
	StartingTime         float64
	PhotometryTimestamps []float64
	BehaviorTimestamps   []float64
	VideoTimestamps      [][]float64
}

// Align computes the shared timeline. The canonical clock is the TTL
// rising-edge timestamps of the photometry channel, shifted so the first
// frame lands on the session starting time. The starting time comes from the
// options when set, otherwise from the first behavior timestamp.
func (c *Converter) Align(opts AlignmentOptions) (*Alignment, error) {
	if c.FiberPhotometry == nil {
		return nil, &ErrConfiguration{
			Parameter: "fiber photometry interface",
			Reason:    "a session cannot align without the photometry TTL channel",
		}
	}

	var startingTime float64
	switch {
	case opts.AlignedStartingTime != nil:
		startingTime = *opts.AlignedStartingTime
	case c.Behavior != nil:
		behaviorTimestamps, err := c.Behavior.OriginalTimestamps()
		if err != nil {
			return nil, err
		}
		if len(behaviorTimestamps) == 0 {
			return nil, &ErrShapeMismatch{What: "behavior timestamps", Want: 1, Got: 0}
		}
		startingTime = behaviorTimestamps[0]
	default:
		return nil, &ErrConfiguration{
			Parameter: "aligned starting time",
			Reason:    "no behavior log in the session, provide the starting time explicitly",
		}
	}

	photometryTimestamps, err := c.FiberPhotometry.OriginalTimestamps()
	if err != nil {
		return nil, err
	}
	if len(photometryTimestamps) == 0 {
		return nil, &ErrShapeMismatch{What: "photometry frame timestamps", Want: 1, Got: 0}
	}
	shift := startingTime - photometryTimestamps[0]
	aligned := make([]float64, len(photometryTimestamps))
	for i, t := range photometryTimestamps {
		aligned[i] = t + shift
	}

	alignment := &Alignment{
		StartingTime:         startingTime,
		PhotometryTimestamps: aligned,
	}

	if c.Behavior != nil {
		behaviorTimestamps, err := c.Behavior.OriginalTimestamps()
		if err != nil {
			return nil, err
		}
		alignment.BehaviorTimestamps = behaviorTimestamps
	}

	if len(c.Videos) > 0 {
		ttlFile, err := OpenMatFile(c.FiberPhotometry.TTLFilePath)
		if err != nil {
			return nil, err
		}
		defer ttlFile.Close()
		boardClock, err := ttlFile.Floats("timestamp")
		if err != nil {
			return nil, err
		}
		for _, video := range c.Videos {
			trace, err := ttlFile.Floats(video.TTLStreamName)
			if err != nil {
				return nil, err
			}
			frameTimes, err := FrameTimestamps(trace, boardClock)
			if err != nil {
				return nil, err
			}
			// The cameras keep rolling after the photometry acquisition
			// stops; frames past the photometry timeline are dropped.
			if len(frameTimes) > len(aligned) {
				frameTimes = frameTimes[:len(aligned)]
			}
			for i := range frameTimes {
				frameTimes[i] += shift
			}
			alignment.VideoTimestamps = append(alignment.VideoTimestamps, frameTimes)
		}
	}

	logger.Info(fmt.Sprintf("Aligned session to starting time %f (%d photometry frames)",
		alignment.StartingTime, len(alignment.PhotometryTimestamps)), "align")
	return alignment, nil
}

// Assemble applies the alignment to every interface and attaches their data
// to the document.
func (c *Converter) Assemble(doc *Document, alignment *Alignment, photometryMeta *FiberPhotometryMetadata, behaviorMeta BehaviorMetadata) error {
	c.FiberPhotometry.SetAlignedTimestamps(alignment.PhotometryTimestamps)
	if err := c.FiberPhotometry.AddToDocument(doc, photometryMeta, c.FiberLocations); err != nil {
		return err
	}

	if c.Behavior != nil {
		c.Behavior.SetAlignedTimestamps(alignment.BehaviorTimestamps)
		if err := c.Behavior.AddToDocument(doc, behaviorMeta); err != nil {
			return err
		}
	}

	if c.Imaging != nil {
		c.Imaging.SetAlignedStartingTime(alignment.StartingTime)
		if err := c.Imaging.AddToDocument(doc); err != nil {
			return err
		}
	}
	if c.ProcessedImaging != nil {
		c.ProcessedImaging.SetAlignedStartingTime(alignment.StartingTime)
		if err := c.ProcessedImaging.AddToDocument(doc); err != nil {
			return err
		}
	}

	for index, video := range c.Videos {
		video.SetAlignedTimestamps(alignment.VideoTimestamps[index])
		if err := video.AddToDocument(doc, fmt.Sprintf("Video%d", index+1)); err != nil {
			return err
		}
	}

	if c.Segmentation != nil {
		err := c.Segmentation.AddToDocument(doc, "PlaneSegmentation",
			"The ROI masks of the fiber tips imaged through the cranial window.")
		if err != nil {
			return err
		}
	}
	return nil
}
