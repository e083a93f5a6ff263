package titles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MediaType is the parser's best guess at what kind of item a title names.
type MediaType string

const (
	MediaUnknown MediaType = "unknown"
	MediaMovie   MediaType = "movie"
	MediaEpisode MediaType = "episode"
)

// Candidate is a parsed, not-yet-verified guess at a media item's identity.
type Candidate struct {
	Name    string
	Year    int
	Type    MediaType
	Season  int
	Episode int
	// Paused reports that the window title carried a paused marker.
	Paused bool
}

// IsZero reports whether parsing produced nothing trackable.
func (c Candidate) IsZero() bool {
	return c.Name == ""
}

// Key returns a stable lowercase key for cache lookups and session identity.
func (c Candidate) Key() string {
	key := strings.ToLower(c.Name)
	if c.Year > 0 {
		key += " " + strconv.Itoa(c.Year)
	}
	if c.Type == MediaEpisode {
		key += fmt.Sprintf(" s%02de%02d", c.Season, c.Episode)
	}
	return key
}

// Player window decorations stripped from title suffixes, longest first.
var playerDecorations = []string{
	"vlc media player",
	"media player classic home cinema",
	"media player classic",
	"windows media player",
	"potplayer",
	"mpc-hc64",
	"mpc-be64",
	"mpc-hc",
	"mpc-be",
	"mpc-qt",
	"celluloid",
	"smplayer",
	"mpv.net",
	"haruna",
	"kmplayer",
	"gom player",
	"mpv",
}

var videoExtensions = map[string]struct{}{
	"mkv": {}, "mp4": {}, "avi": {}, "mov": {}, "wmv": {}, "m4v": {},
	"mpg": {}, "mpeg": {}, "webm": {}, "flv": {}, "ts": {}, "m2ts": {},
	"ogm": {}, "ogv": {}, "vob": {}, "3gp": {},
}

// Release-group noise; the name is truncated at the first of these tokens.
var releaseTags = map[string]struct{}{
	"480p": {}, "576p": {}, "720p": {}, "1080p": {}, "1440p": {}, "2160p": {},
	"4k": {}, "8k": {}, "uhd": {}, "hd": {}, "sd": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {},
	"xvid": {}, "divx": {}, "av1": {}, "vp9": {},
	"webrip": {}, "webdl": {}, "web": {}, "bluray": {}, "bdrip": {}, "brrip": {},
	"hdtv": {}, "dvdrip": {}, "dvd": {}, "remux": {}, "hdrip": {}, "camrip": {},
	"aac": {}, "ac3": {}, "eac3": {}, "dts": {}, "truehd": {}, "atmos": {},
	"flac": {}, "opus": {}, "mp3": {},
	"hdr": {}, "hdr10": {}, "dv": {}, "sdr": {}, "10bit": {}, "8bit": {},
	"proper": {}, "repack": {}, "extended": {}, "unrated": {}, "remastered": {},
	"multi": {}, "dubbed": {}, "subbed": {},
}

// Titles that name player UI states rather than media.
var genericTitles = map[string]struct{}{
	"audio": {}, "video": {}, "media": {}, "no file": {}, "unknown": {},
	"idle": {}, "drop files to play": {},
}

var (
	seasonEpisodePattern = regexp.MustCompile(`(?i)\bS(\d{1,2})[\s._-]?E(\d{1,3})\b`)
	altEpisodePattern    = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	yearPattern          = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(?:[^0-9]|$)`)
	pausedPattern        = regexp.MustCompile(`(?i)[\[(]?\s*\bpaused\b\s*[\])]?`)
	bracketGroupPattern  = regexp.MustCompile(`[\[{][^\]}]*[\]}]`)
)

var displayCaser = cases.Title(language.Und, cases.NoLower)

// Parse extracts a normalized candidate from a raw window title or filename.
// Empty or unidentifiable input yields a zero candidate; callers must not
// start tracking from one.
func Parse(raw string) Candidate {
	working := strings.TrimSpace(raw)
	if working == "" {
		return Candidate{Type: MediaUnknown}
	}

	var cand Candidate
	cand.Type = MediaUnknown

	if pausedPattern.MatchString(working) {
		cand.Paused = true
		working = pausedPattern.ReplaceAllString(working, " ")
	}

	working = stripDecorations(working)
	working = baseName(working)
	working = stripExtension(working)

	// Bracketed groups are release noise unless they hold a plausible year.
	working = bracketGroupPattern.ReplaceAllStringFunc(working, func(group string) string {
		inner := strings.Trim(group, "[]{}")
		if yearPattern.MatchString(" " + inner + " ") {
			return inner
		}
		return " "
	})

	if m := seasonEpisodePattern.FindStringSubmatchIndex(working); m != nil {
		cand.Season = mustAtoi(working[m[2]:m[3]])
		cand.Episode = mustAtoi(working[m[4]:m[5]])
		cand.Type = MediaEpisode
		working = working[:m[0]]
	} else if m := altEpisodePattern.FindStringSubmatchIndex(working); m != nil {
		cand.Season = mustAtoi(working[m[2]:m[3]])
		cand.Episode = mustAtoi(working[m[4]:m[5]])
		cand.Type = MediaEpisode
		working = working[:m[0]]
	}

	if m := yearPattern.FindStringSubmatchIndex(working); m != nil {
		year := mustAtoi(working[m[2]:m[3]])
		if year >= 1900 && year <= 2099 {
			// Only treat it as a release year when a name precedes it.
			prefix := strings.TrimSpace(normalizeSeparators(working[:m[2]]))
			if prefix != "" {
				cand.Year = year
				working = working[:m[2]]
				if cand.Type == MediaUnknown {
					cand.Type = MediaMovie
				}
			}
		}
	}

	name := normalizeSeparators(working)
	name = truncateAtReleaseTag(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return Candidate{Type: MediaUnknown, Paused: cand.Paused}
	}
	if _, generic := genericTitles[strings.ToLower(name)]; generic {
		return Candidate{Type: MediaUnknown, Paused: cand.Paused}
	}

	cand.Name = displayCaser.String(name)
	return cand
}

func stripDecorations(title string) string {
	for {
		stripped := false
		lower := strings.ToLower(title)
		for _, deco := range playerDecorations {
			for _, sep := range []string{" - ", " — ", " – ", " | ", " :: "} {
				suffix := sep + deco
				if strings.HasSuffix(lower, suffix) {
					title = strings.TrimSpace(title[:len(title)-len(suffix)])
					lower = strings.ToLower(title)
					stripped = true
				}
			}
		}
		if !stripped {
			return title
		}
	}
}

func baseName(title string) string {
	if idx := strings.LastIndexAny(title, "/\\"); idx >= 0 && idx < len(title)-1 {
		return title[idx+1:]
	}
	return title
}

func stripExtension(title string) string {
	idx := strings.LastIndex(title, ".")
	if idx <= 0 || idx == len(title)-1 {
		return title
	}
	ext := strings.ToLower(title[idx+1:])
	if _, known := videoExtensions[ext]; known {
		return title[:idx]
	}
	return title
}

func normalizeSeparators(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	prevSpace := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func truncateAtReleaseTag(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		if _, tag := releaseTags[strings.ToLower(word)]; tag {
			if i == 0 {
				return ""
			}
			return strings.Join(words[:i], " ")
		}
	}
	return strings.Join(words, " ")
}

func mustAtoi(value string) int {
	n, _ := strconv.Atoi(value)
	return n
}
