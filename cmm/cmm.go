// Package cmm handles the ICC color profiles embedded as archival output
// intents. It parses profile headers, reads the description tag, and can
// synthesize a minimal sRGB profile for documents that arrive without one.
package cmm

// Profile is a parsed color profile.
type Profile interface {
	// Name returns the profile description.
	Name() string
	// ColorSpace returns the data color space signature, e.g. "RGB ".
	ColorSpace() string
	// Class returns the profile class signature, e.g. "mntr".
	Class() string
	// Components returns the channel count of the data color space.
	Components() int
	// Data returns the raw profile bytes.
	Data() []byte
}
