package audio

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{".mp3", KindLossy},
		{".MP3", KindLossy},
		{".Mp3", KindLossy},
		{"mp3", KindLossy},
		{".mp4", KindLossy},
		{".aac", KindLossy},
		{".mpc", KindLossy},
		{".flac", KindLossless},
		{".FLAC", KindLossless},
		{".ape", KindLossless},
		{".wav", KindLossless},
		{".txt", KindOther},
		{".m4a", KindOther},
		{".ogg", KindOther},
		{"", KindOther},
		{".", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := Classify(tt.ext); got != tt.want {
				t.Errorf("Classify(%q) = %v, expected %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestSetsAreDisjoint(t *testing.T) {
	for ext := range lossyExtensions {
		if _, ok := losslessExtensions[ext]; ok {
			t.Errorf("extension %s is both lossy and lossless", ext)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(" flac "); got != ".FLAC" {
		t.Errorf("Normalize(\" flac \") = %q, expected .FLAC", got)
	}
	if got := Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, expected empty", got)
	}
}

func TestKindString(t *testing.T) {
	if KindLossy.String() != "lossy" || KindLossless.String() != "lossless" || KindOther.String() != "other" {
		t.Errorf("unexpected Kind names: %s %s %s", KindLossy, KindLossless, KindOther)
	}
}
