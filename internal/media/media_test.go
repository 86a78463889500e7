package media

import "testing"

func TestSanitizeFilename_InvalidChars(t *testing.T) {
	got := SanitizeFilename(`a<b>c:d"e|f?g*h\i/j`)
	want := "a_b_c_d_e_f_g_h_i_j"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSanitizeFilename_TrimsSpacesAndDots(t *testing.T) {
	got := SanitizeFilename("  ...My Clip...  ")
	if got != "My Clip" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeFilename_Empty(t *testing.T) {
	got := SanitizeFilename("   ...   ")
	if got != "untitled" {
		t.Fatalf("got %q, want untitled", got)
	}
}

func TestSanitizeFilename_TruncatesTo100Runes(t *testing.T) {
	long := ""
	for i := 0; i < 150; i++ {
		long += "a"
	}
	got := SanitizeFilename(long)
	if len([]rune(got)) != 100 {
		t.Fatalf("got length %d, want 100", len([]rune(got)))
	}
}

func TestEscapeConcatPath(t *testing.T) {
	got := escapeConcatPath(`/tmp/it's a clip.mp4`)
	want := `/tmp/it'\''s a clip.mp4`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_RejectsNonPositiveDuration(t *testing.T) {
	p := NewProcessor()
	err := p.Extract(nil, "src.mp4", "dst.mp4", 10, 5)
	if err == nil {
		t.Fatal("expected an error for end <= start")
	}
}
