package control

import (
	"github.com/coreman2200/funtimes-camrig/internal/filter"
)

// ActionKind is the semantic action bound to a pad.
type ActionKind int

const (
	Unmapped ActionKind = iota
	SelectFilter
	ToggleGlitch
	Reset
	AdjustLightColor
	AdjustLightIntensity
	MoveLight
	RotateModel
	AdjustBrightness
	AdjustSliderParam // ASCII contrast presets on the second row
	CycleModel
	SwapEnvironment
	Reload
)

var actionNames = map[ActionKind]string{
	Unmapped:             "unmapped",
	SelectFilter:         "select_filter",
	ToggleGlitch:         "toggle_glitch",
	Reset:                "reset",
	AdjustLightColor:     "light_color",
	AdjustLightIntensity: "light_intensity",
	MoveLight:            "move_light",
	RotateModel:          "rotate_model",
	AdjustBrightness:     "brightness",
	AdjustSliderParam:    "slider_param",
	CycleModel:           "cycle_model",
	SwapEnvironment:      "swap_environment",
	Reload:               "reload",
}

func (k ActionKind) String() string { return actionNames[k] }

// Action is a resolved press: the kind plus the pad's index inside its range.
type Action struct {
	Kind  ActionKind
	Index int
}

type padRange struct {
	lo, hi uint8
	kind   ActionKind
}

// pressTable is the one authoritative pad map. Ranges never overlap.
var pressTable = []padRange{
	{0, 31, AdjustLightColor},
	{32, 39, MoveLight},
	{40, 45, SelectFilter},
	{46, 46, ToggleGlitch},
	{47, 47, Reset},
	{48, 55, AdjustSliderParam},
	{56, 63, AdjustBrightness},
	{64, 67, RotateModel},
	{68, 70, SwapEnvironment},
	{71, 71, CycleModel},
	{82, 89, AdjustLightIntensity},
	{98, 98, Reload},
}

// LookupPress resolves a pad id. Unmapped ids return ok=false.
func LookupPress(id uint8) (Action, bool) {
	for _, r := range pressTable {
		if id >= r.lo && id <= r.hi {
			return Action{Kind: r.kind, Index: int(id - r.lo)}, true
		}
	}
	return Action{Kind: Unmapped}, false
}

// FilterPads lists the primaries in pad order starting at note 40.
var FilterPads = []filter.Primary{
	filter.Sepia, filter.Film, filter.BlackAndWhite, filter.Halftone, filter.ASCII, filter.Anaglyph,
}

// ASCIIContrastPresets are the second-row contrast levels.
var ASCIIContrastPresets = [8]float64{9, 19, 39, 49, 59, 69, 79, 89}

// LightZ maps a preset index 0..7 onto z in [+8,-8].
func LightZ(index int) float64 { return 8 - float64(index)*16/7 }

// Brightness maps a preset index 0..7 onto [0,5].
func Brightness(index int) float64 { return float64(index) * 5 / 7 }

// Intensity maps a preset index 0..7 onto [20,0].
func Intensity(index int) float64 { return 20 - float64(index)*20/7 }

// PadHue decodes a colour pad into hue (by column) and saturation (by row).
func PadHue(id uint8) (hue, sat float64) {
	row, col := int(id)/8, int(id)%8
	return float64(col) / 7 * 360, 1 - float64(row)/3
}

// Param is a continuously adjustable value.
type Param int

const (
	CameraZoom Param = iota
	DOFFocus
	DOFAperture
	WebcamZoom
	PixelSize
	BloomThreshold
	ObjectX
	ObjectY
	ObjectZ
	LightZPreset
)

// Slider binds a continuous control to a parameter range.
type Slider struct {
	Param    Param
	Lo, Hi   float64
	Inverted bool
	Index    int // LightZPreset only
}

// Value maps a raw 0..127 value into the slider's range.
func (s Slider) Value(v uint8) float64 {
	if s.Inverted {
		return Inverted(v, s.Lo, s.Hi)
	}
	return Linear(v, s.Lo, s.Hi)
}

var changeTable = map[uint8]Slider{
	48: {Param: CameraZoom, Lo: 0.1, Hi: 10},
	49: {Param: DOFFocus, Lo: 0.1, Hi: 20},
	50: {Param: DOFAperture, Lo: 0.001, Hi: 0.1},
	51: {Param: WebcamZoom, Lo: 0.1, Hi: 5},
	52: {Param: PixelSize, Lo: 1, Hi: 600},
	53: {Param: BloomThreshold, Lo: 0, Hi: 3, Inverted: true},
	54: {Param: ObjectX, Lo: -10, Hi: 10},
	55: {Param: ObjectY, Lo: -10, Hi: 10},
	56: {Param: ObjectZ, Lo: -10, Hi: 10},
}

func init() {
	for i := 0; i < 8; i++ {
		changeTable[uint8(32+i)] = Slider{Param: LightZPreset, Index: i}
	}
}

func LookupChange(id uint8) (Slider, bool) {
	s, ok := changeTable[id]
	return s, ok
}

// Linear maps v in [0,127] onto [lo,hi].
func Linear(v uint8, lo, hi float64) float64 {
	n := float64(v) / 127
	return lo + n*(hi-lo)
}

// Inverted maps v in [0,127] onto [hi,lo].
func Inverted(v uint8, lo, hi float64) float64 {
	n := float64(v) / 127
	return hi - n*(hi-lo)
}
