// Package metadata defines the canonical Dolby Vision display-management
// levels shared by the metadata readers and the RPU builder, the static
// generation config, and the error taxonomy of a generation run.
package metadata

// DefaultTrim is the neutral value of every Level 2 trim and the MS weight.
const DefaultTrim = 2048

// Level1Metadata describes the luminance distribution of a frame as 12-bit
// PQ codewords.
type Level1Metadata struct {
	MinPQ uint16
	MaxPQ uint16
	AvgPQ uint16
}

// Level2Metadata holds the trims for one target display peak brightness.
type Level2Metadata struct {
	TargetNits         uint16
	TrimSlope          uint16
	TrimOffset         uint16
	TrimPower          uint16
	TrimChromaWeight   uint16
	TrimSaturationGain uint16
	MSWeight           int16
}

// NewLevel2 returns neutral trims for targetNits.
func NewLevel2(targetNits uint16) Level2Metadata {
	return Level2Metadata{
		TargetNits:         targetNits,
		TrimSlope:          DefaultTrim,
		TrimOffset:         DefaultTrim,
		TrimPower:          DefaultTrim,
		TrimChromaWeight:   DefaultTrim,
		TrimSaturationGain: DefaultTrim,
		MSWeight:           DefaultTrim,
	}
}

// Level3Metadata carries offsets applied on top of Level 1.
type Level3Metadata struct {
	MinPQOffset uint16
	MaxPQOffset uint16
	AvgPQOffset uint16
}

// Level5Metadata is the active area (letterbox/pillarbox) crop.
type Level5Metadata struct {
	ActiveAreaLeftOffset   uint16 `json:"active_area_left_offset" yaml:"active_area_left_offset"`
	ActiveAreaRightOffset  uint16 `json:"active_area_right_offset" yaml:"active_area_right_offset"`
	ActiveAreaTopOffset    uint16 `json:"active_area_top_offset" yaml:"active_area_top_offset"`
	ActiveAreaBottomOffset uint16 `json:"active_area_bottom_offset" yaml:"active_area_bottom_offset"`
}

// Level6Metadata is the static mastering display and content light level
// information. Mastering luminance max is in nits, min in 0.0001 nits.
type Level6Metadata struct {
	MaxDisplayMasteringLuminance uint16 `json:"max_display_mastering_luminance" yaml:"max_display_mastering_luminance"`
	MinDisplayMasteringLuminance uint16 `json:"min_display_mastering_luminance" yaml:"min_display_mastering_luminance"`
	MaxContentLightLevel         uint16 `json:"max_content_light_level" yaml:"max_content_light_level"`
	MaxFrameAverageLightLevel    uint16 `json:"max_frame_average_light_level" yaml:"max_frame_average_light_level"`
}
