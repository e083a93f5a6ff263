package titles

import "testing"

func TestParseMovieWithYearAndDecoration(t *testing.T) {
	cand := Parse("Inception.2010.1080p.mkv - VLC media player")
	if cand.Name != "Inception" {
		t.Fatalf("unexpected name: %q", cand.Name)
	}
	if cand.Year != 2010 {
		t.Fatalf("unexpected year: %d", cand.Year)
	}
	if cand.Type != MediaMovie {
		t.Fatalf("unexpected type: %s", cand.Type)
	}
}

func TestParseEpisodeMarker(t *testing.T) {
	cand := Parse("Show.Name.S02E05.mkv")
	if cand.Name != "Show Name" {
		t.Fatalf("unexpected name: %q", cand.Name)
	}
	if cand.Type != MediaEpisode {
		t.Fatalf("unexpected type: %s", cand.Type)
	}
	if cand.Season != 2 || cand.Episode != 5 {
		t.Fatalf("unexpected season/episode: %d/%d", cand.Season, cand.Episode)
	}
}

func TestParseAltEpisodeScheme(t *testing.T) {
	cand := Parse("Show Name 4x02 - mpv")
	if cand.Type != MediaEpisode || cand.Season != 4 || cand.Episode != 2 {
		t.Fatalf("unexpected candidate: %+v", cand)
	}
	if cand.Name != "Show Name" {
		t.Fatalf("unexpected name: %q", cand.Name)
	}
}

func TestParseEmptyTitle(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t"} {
		cand := Parse(raw)
		if !cand.IsZero() {
			t.Fatalf("expected zero candidate for %q, got %+v", raw, cand)
		}
		if cand.Type != MediaUnknown {
			t.Fatalf("expected unknown type for %q", raw)
		}
	}
}

func TestParseGenericTitlesRejected(t *testing.T) {
	for _, raw := range []string{"Audio", "no file - mpc-hc", "Media"} {
		if cand := Parse(raw); !cand.IsZero() {
			t.Fatalf("expected zero candidate for %q, got %+v", raw, cand)
		}
	}
}

func TestParseIgnoresNonYearBrackets(t *testing.T) {
	cand := Parse("[GrpName] Cool Movie (2015) [1080p x265]")
	if cand.Name != "Cool Movie" {
		t.Fatalf("unexpected name: %q", cand.Name)
	}
	if cand.Year != 2015 {
		t.Fatalf("unexpected year: %d", cand.Year)
	}
}

func TestParseBareYearTitleKeepsName(t *testing.T) {
	// A title that IS a year must not be consumed as a release year.
	cand := Parse("1984.mkv")
	if cand.Name != "1984" {
		t.Fatalf("unexpected name: %q", cand.Name)
	}
	if cand.Year != 0 {
		t.Fatalf("unexpected year: %d", cand.Year)
	}
}

func TestParseTruncatesAtReleaseTags(t *testing.T) {
	cand := Parse("Some_Movie_720p_WEBRip_x264.mp4")
	if cand.Name != "Some Movie" {
		t.Fatalf("unexpected name: %q", cand.Name)
	}
}

func TestParsePausedMarker(t *testing.T) {
	cand := Parse("Inception.2010.mkv [Paused] - mpv")
	if !cand.Paused {
		t.Fatal("expected paused flag")
	}
	if cand.Name != "Inception" || cand.Year != 2010 {
		t.Fatalf("unexpected candidate: %+v", cand)
	}
}

func TestParseDoesNotFlagUnpausedWords(t *testing.T) {
	if cand := Parse("Unpaused Documentary.mkv"); cand.Paused {
		t.Fatalf("paused flag set spuriously: %+v", cand)
	}
}

func TestParseFilePathInput(t *testing.T) {
	cand := Parse("/home/user/videos/Old.Classic.1954.mkv")
	if cand.Name != "Old Classic" || cand.Year != 1954 {
		t.Fatalf("unexpected candidate: %+v", cand)
	}
}

func TestParseDeterministic(t *testing.T) {
	raw := "Show.Name.S01E01.720p.HDTV.x264.mkv - VLC media player"
	first := Parse(raw)
	for i := 0; i < 5; i++ {
		if Parse(raw) != first {
			t.Fatal("parse is not deterministic")
		}
	}
}

func TestCandidateKey(t *testing.T) {
	movie := Parse("Inception.2010.mkv")
	if movie.Key() != "inception 2010" {
		t.Fatalf("unexpected movie key: %q", movie.Key())
	}
	ep := Parse("Show.Name.S02E05.mkv")
	if ep.Key() != "show name s02e05" {
		t.Fatalf("unexpected episode key: %q", ep.Key())
	}
}
