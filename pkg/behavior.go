package fiberconv

import (
	"math"
	"sort"
)

const (
	behaviorModuleName        = "behavior"
	behaviorModuleDescription = "Contains the velocity signals from two optical mouse sensors (Logitech G203 mice with hard plastic shells removed)."

	// Default treadmill ball diameter in meters, from the lab's ball2xy code.
	DefaultBallDiameter = 0.2032
)

// Discrete event channels of the behavior file and the event type each one
// maps to in the intervals table.
var eventChannels = []struct {
	Variable  string
	EventType string
}{
	{"stimulus_led", "Light"},
	{"stimulus_led2", "Light"},
	{"stimulus_sound", "Tone"},
	{"lick", "Lick"},
	{"reward", "Reward"},
}

// BehaviorSeriesMetadata names and describes one behavioral time series.
type BehaviorSeriesMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Unit        string `yaml:"unit"`
}

// BehaviorMetadata covers the velocity series and the event-intervals table.
type BehaviorMetadata struct {
	TimeSeries    []BehaviorSeriesMetadata `yaml:"time_series"`
	TimeIntervals struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"time_intervals"`
}

// DefaultBehaviorMetadata returns the series names and descriptions used for
// every session of this experiment.
func DefaultBehaviorMetadata() BehaviorMetadata {
	var meta BehaviorMetadata
	meta.TimeSeries = []BehaviorSeriesMetadata{
		{
			Name:        "AngularVelocity",
			Description: "The angular velocity from yaw (rotational) velocity converted to radians/s.",
			Unit:        "radians/s",
		},
		{
			Name:        "Velocity",
			Description: "Velocity for the roll and pitch (x, y) measured in m/s.",
			Unit:        "m/s",
		},
	}
	meta.TimeIntervals.Name = "TimeIntervals"
	meta.TimeIntervals.Description = "Mice were presented with either visual (blue LED) or auditory (12 kHz tone) stimuli at random intervals (4-40 s). For experiments with water reward delivery, a water spout mounted on a post delivered water rewards (9 uL) at random time intervals through a water spout and solenoid valve gated electronically. Licking was monitored by a capacitive touch circuit connected to the spout."
	return meta
}

// AddVelocitySignals reads the ball sensor channels from the behavior file and
// attaches them to the behavior processing module. The yaw channel arrives in
// m/s and converts to radians/s through the ball circumference; roll and pitch
// stay in m/s and stack into a two-column series.
func AddVelocitySignals(doc *Document, meta BehaviorMetadata, file *MatFile, timestamps []float64, ballDiameter float64) error {
	if len(meta.TimeSeries) < 2 {
		return &ErrConfiguration{
			Parameter: "behavior time series metadata",
			Reason:    "angular velocity and velocity entries are required",
		}
	}
	if ballDiameter <= 0 {
		ballDiameter = DefaultBallDiameter
	}

	yaw, err := file.Floats("ballYaw")
	if err != nil {
		return err
	}
	roll, err := file.Floats("ballRoll")
	if err != nil {
		return err
	}
	pitch, err := file.Floats("ballPitch")
	if err != nil {
		return err
	}

	frames := len(timestamps)
	if len(yaw) < frames || len(roll) < frames || len(pitch) < frames {
		return &ErrShapeMismatch{What: "ball sensor channels", Want: frames, Got: len(yaw)}
	}

	angular := make([]float64, frames)
	for i := 0; i < frames; i++ {
		angular[i] = yaw[i] / (math.Pi * ballDiameter) * 2 * math.Pi
	}

	velocity := make([]float64, 2*frames)
	for i := 0; i < frames; i++ {
		velocity[2*i] = roll[i]
		velocity[2*i+1] = pitch[i]
	}

	module := doc.Module(behaviorModuleName, behaviorModuleDescription)
	angularMeta := meta.TimeSeries[0]
	module.TimeSeries = append(module.TimeSeries, &TimeSeries{
		Name:        angularMeta.Name,
		Description: angularMeta.Description,
		Unit:        angularMeta.Unit,
		Data:        angular,
		Columns:     1,
		Timestamps:  timestamps,
	})
	velocityMeta := meta.TimeSeries[1]
	module.TimeSeries = append(module.TimeSeries, &TimeSeries{
		Name:        velocityMeta.Name,
		Description: velocityMeta.Description,
		Unit:        velocityMeta.Unit,
		Data:        velocity,
		Columns:     2,
		Timestamps:  timestamps,
	})
	return nil
}

// AddBinarySignals extracts the onset/offset intervals of the discrete event
// channels present in the behavior file and attaches a single intervals table,
// rows ordered by start time. Sessions without any event channel add nothing.
func AddBinarySignals(doc *Document, meta BehaviorMetadata, file *MatFile, timestamps []float64) error {
	var rows []IntervalRow
	for _, channel := range eventChannels {
		if !file.Has(channel.Variable) {
			continue
		}
		trace, err := file.Floats(channel.Variable)
		if err != nil {
			return err
		}
		if len(trace) > len(timestamps) {
			trace = trace[:len(timestamps)]
		}
		intervals, err := EventIntervals(trace, timestamps[:len(trace)])
		if err != nil {
			return err
		}
		for _, interval := range intervals {
			rows = append(rows, IntervalRow{
				StartTime: interval.StartTime,
				StopTime:  interval.StopTime,
				EventType: channel.EventType,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartTime < rows[j].StartTime
	})

	module := doc.Module(behaviorModuleName, behaviorModuleDescription)
	module.Intervals = append(module.Intervals, &TimeIntervals{
		Name:        meta.TimeIntervals.Name,
		Description: meta.TimeIntervals.Description,
		Rows:        rows,
	})
	return nil
}
