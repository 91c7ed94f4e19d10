package scan

import (
	"fmt"
	"strings"
	"time"
)

// MatchReason captures why a lossy file was selected for deletion:
// the base-name key it shares with one or more lossless files.
type MatchReason struct {
	Key          string    // Directory + name without extension
	Counterparts []string  // Lossless files producing Key, in enumeration order
	EvaluatedAt  time.Time // When the match was made
}

// HasMatch returns true if at least one lossless counterpart exists.
func (mr MatchReason) HasMatch() bool {
	return len(mr.Counterparts) > 0
}

// ToLogString formats the reason for structured logging.
// Example: "lossless_counterpart: /music/a/song.flac (+1 more)"
func (mr MatchReason) ToLogString() string {
	if !mr.HasMatch() {
		return "none"
	}
	s := "lossless_counterpart: " + mr.Counterparts[0]
	if extra := len(mr.Counterparts) - 1; extra > 0 {
		s += fmt.Sprintf(" (+%d more)", extra)
	}
	return s
}

// PrimaryCounterpart returns the first lossless file sharing the key, or "".
func (mr MatchReason) PrimaryCounterpart() string {
	if !mr.HasMatch() {
		return ""
	}
	return mr.Counterparts[0]
}

// CounterpartExtensions lists the distinct lossless extensions backing the match, e.g. "FLAC+WAV".
func (mr MatchReason) CounterpartExtensions() string {
	seen := make(map[string]bool)
	var exts []string
	for _, c := range mr.Counterparts {
		i := strings.LastIndexByte(c, '.')
		if i < 0 {
			continue
		}
		ext := strings.ToUpper(c[i+1:])
		if seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	return strings.Join(exts, "+")
}
