package render

import _ "embed"

// AgencySans is a Latin subset of DejaVu Sans with a taka sign (U+09F3)
// added, so amounts print as ৳ without any font configuration. The
// Bitstream Vera licence that covers it is in fonts/LICENSE.
var (
	//go:embed fonts/AgencySans-Regular.ttf
	defaultRegular []byte

	//go:embed fonts/AgencySans-Bold.ttf
	defaultBold []byte
)
