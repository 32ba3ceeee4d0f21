package attributes

import "strings"

// Color is the dominant color of a keyframe.
type Color string

const (
	Black  Color = "Black"
	White  Color = "White"
	Gray   Color = "Gray"
	Red    Color = "Red"
	Orange Color = "Orange"
	Yellow Color = "Yellow"
	Green  Color = "Green"
	Blue   Color = "Blue"
	Purple Color = "Purple"
	Pink   Color = "Pink"
)

// Palette lists every color the tagging pipeline can assign.
var Palette = []Color{Black, White, Gray, Red, Orange, Yellow, Green, Blue, Purple, Pink}

// Brightness is the overall brightness level of a keyframe.
type Brightness string

const (
	Dark   Brightness = "Dark"
	Medium Brightness = "Medium"
	Bright Brightness = "Bright"
)

// BrightnessLevels lists the levels in ascending order.
var BrightnessLevels = []Brightness{Dark, Medium, Bright}

// ParseColor matches s case-insensitively against the palette.
func ParseColor(s string) (Color, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Palette {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return Color(s), false
}

// ParseBrightness matches s case-insensitively against the brightness levels.
func ParseBrightness(s string) (Brightness, bool) {
	s = strings.TrimSpace(s)
	for _, b := range BrightnessLevels {
		if strings.EqualFold(s, string(b)) {
			return b, true
		}
	}
	return Brightness(s), false
}
