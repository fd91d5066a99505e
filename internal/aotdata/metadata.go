package aotdata

import (
	"time"
)

// Metadata is the upload preview shown to the user.
type Metadata struct {
	SystemName    *string  `json:"system_name"`
	TelescopeName *string  `json:"telescope_name"`
	Mode          *string  `json:"mode"`
	StartDate     *string  `json:"start_date"`
	EndDate       *string  `json:"end_date"`
	RecordingTime *float64 `json:"recording_time"`

	NumWFS           int             `json:"num_wfs"`
	WavefrontSensors []SensorMeta    `json:"wavefront_sensors"`
	NumCorrectors    int             `json:"num_correctors"`
	Correctors       []CorrectorMeta `json:"wavefront_correctors"`
	NumLoops         int             `json:"num_loops"`
	Loops            []LoopMeta      `json:"loops"`
}

// SensorMeta summarises one wavefront sensor.
type SensorMeta struct {
	UID                string `json:"uid"`
	NumFrames          *int   `json:"num_frames"`
	NValidSubapertures *int   `json:"n_valid_subapertures"`
	HasPixels          bool   `json:"has_pixels"`
	HasSlopes          bool   `json:"has_slopes"`
}

// CorrectorMeta summarises one corrector.
type CorrectorMeta struct {
	UID             string `json:"uid"`
	NValidActuators *int   `json:"n_valid_actuators"`
}

// LoopMeta summarises one control loop.
type LoopMeta struct {
	UID       string   `json:"uid"`
	WFC       *string  `json:"wfc"`
	NumFrames *int     `json:"num_frames"`
	Framerate *float64 `json:"framerate"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(v int) *int { return &v }

// ExtractMetadata builds the preview of ds. Only the subaperture masks are
// read; everything else comes from shapes and attributes.
func ExtractMetadata(ds *Dataset) (*Metadata, error) {
	md := &Metadata{
		SystemName:       strPtr(ds.Info.Name),
		TelescopeName:    strPtr(ds.Info.Telescope),
		Mode:             strPtr(ds.Info.Mode),
		NumWFS:           len(ds.Sensors),
		WavefrontSensors: make([]SensorMeta, 0, len(ds.Sensors)),
		NumCorrectors:    len(ds.Correctors),
		Correctors:       make([]CorrectorMeta, 0, len(ds.Correctors)),
		NumLoops:         len(ds.Loops),
		Loops:            make([]LoopMeta, 0, len(ds.Loops)),
	}
	if ds.Info.Start != nil {
		md.StartDate = strPtr(ds.Info.Start.Format(time.RFC3339))
	}
	if ds.Info.End != nil {
		md.EndDate = strPtr(ds.Info.End.Format(time.RFC3339))
	}
	if ds.Info.Start != nil && ds.Info.End != nil {
		secs := ds.Info.End.Sub(*ds.Info.Start).Seconds()
		md.RecordingTime = &secs
	}

	for _, s := range ds.Sensors {
		sm := SensorMeta{UID: s.UID, HasPixels: s.Pixels != nil, HasSlopes: s.Slopes != nil}
		switch {
		case s.Pixels != nil:
			sm.NumFrames = intPtr(s.Pixels.Shape()[0])
		case s.Slopes != nil:
			sm.NumFrames = intPtr(s.Slopes.Shape()[0])
		}
		if s.SubapertureMask != nil {
			mask, err := s.SubapertureMask.ReadAll()
			if err != nil {
				return nil, err
			}
			n := 0
			for _, v := range mask.Data() {
				if v != -1 {
					n++
				}
			}
			sm.NValidSubapertures = &n
		}
		md.WavefrontSensors = append(md.WavefrontSensors, sm)
	}

	for _, c := range ds.Correctors {
		cm := CorrectorMeta{UID: c.UID}
		if c.InfluenceFunction != nil {
			cm.NValidActuators = intPtr(c.InfluenceFunction.Shape()[0])
		}
		md.Correctors = append(md.Correctors, cm)
	}

	for i := range ds.Loops {
		l := &ds.Loops[i]
		lm := LoopMeta{UID: l.UID, Framerate: l.Framerate}
		if l.Commands != nil {
			lm.NumFrames = intPtr(l.Commands.Shape()[0])
		}
		if c, err := ds.LoopCorrector(l); err == nil {
			lm.WFC = &c.UID
		}
		md.Loops = append(md.Loops, lm)
	}
	return md, nil
}
