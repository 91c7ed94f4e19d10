package audio

import "strings"

// Kind is the quality class of an audio container, derived from its extension
type Kind int

const (
	KindOther Kind = iota
	KindLossy
	KindLossless
)

// Extensions are stored upper-cased with the leading dot, the form Normalize returns
var (
	lossyExtensions = map[string]struct{}{
		".MP3": {},
		".MP4": {},
		".AAC": {},
		".MPC": {},
	}

	losslessExtensions = map[string]struct{}{
		".FLAC": {},
		".APE":  {},
		".WAV":  {},
	}
)

// Normalize upper-cases an extension and makes sure it starts with a dot
func Normalize(ext string) string {
	ext = strings.ToUpper(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Classify reports whether ext (with or without dot, any case) is lossy, lossless or neither
func Classify(ext string) Kind {
	n := Normalize(ext)
	if _, ok := lossyExtensions[n]; ok {
		return KindLossy
	}
	if _, ok := losslessExtensions[n]; ok {
		return KindLossless
	}
	return KindOther
}

func (k Kind) String() string {
	switch k {
	case KindLossy:
		return "lossy"
	case KindLossless:
		return "lossless"
	default:
		return "other"
	}
}
