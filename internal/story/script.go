package story

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// SecondsPerPhoto is how long each photo stays on screen in a story script.
const SecondsPerPhoto = 5

// DefaultOpening is the opening card when the user gave no title.
const DefaultOpening = "My Travel Story"

type stylePrompt struct {
	base        string
	transitions []string
}

var stylePrompts = map[Style]stylePrompt{
	StyleCinematic: {
		base:        "Cinematic picture quality, smooth camera movement, professional color grading, dramatic lighting changes.",
		transitions: []string{"slow push-in", "elegant pan", "depth-of-field shift", "light fade"},
	},
	StyleVlog: {
		base:        "First-person perspective, natural handheld feel, true-to-life color, a warm atmosphere.",
		transitions: []string{"quick cut", "jump", "natural sway", "bright tone"},
	},
	StyleMemories: {
		base:        "Nostalgic film filter, soft glow, a dreamy atmosphere, a cozy sense of remembrance.",
		transitions: []string{"fade in and out", "soft blur", "time-lapse", "dreamy light"},
	},
	StyleDynamic: {
		base:        "Fast-paced editing, dynamic camera movement, high contrast, full of energy.",
		transitions: []string{"fast zoom", "spin", "hard contrast", "energy burst"},
	},
}

var moods = map[Music]string{
	MusicPeaceful:  "calm and peaceful, relaxed",
	MusicAdventure: "adventurous and thrilling, full of life",
	MusicRomantic:  "romantic and warm, soft and dreamy",
	MusicEnergetic: "high-energy and passionate",
}

var narrations = map[Style][]string{
	StyleCinematic: {
		"This was a journey to remember.",
		"Every moment is worth keeping.",
		"On the road, I met the best version of myself.",
		"Travel is about discovery.",
	},
	StyleVlog: {
		"Come take a look around with me.",
		"Today's trip was amazing.",
		"This place is so beautiful.",
		"Sharing these great moments with you.",
	},
	StyleMemories: {
		"Those beautiful memories.",
		"Time passes, but memories stay.",
		"Every photo tells a story.",
		"Holding on to these warm moments.",
	},
	StyleDynamic: {
		"Let's go! Into the unknown.",
		"Feel the passion and energy.",
		"Every moment is full of surprises.",
		"This is why we travel.",
	},
}

// captionTemplates receive the one-based photo number, the total, and the title.
var captionTemplates = map[Style][]func(n, total int, title string) string{
	StyleCinematic: {
		func(n, _ int, title string) string { return fmt.Sprintf("%s - Chapter %d", orDefault(title, "Travel Memories"), n) },
		func(n, total int, _ string) string { return fmt.Sprintf("Those good times · %d/%d", n, total) },
		func(n, _ int, _ string) string { return fmt.Sprintf("A moment to keep #%d", n) },
		func(n, total int, _ string) string { return fmt.Sprintf("Stories from the road (%d/%d)", n, total) },
	},
	StyleVlog: {
		func(n, _ int, _ string) string { return fmt.Sprintf("Day %d 📍", n) },
		func(n, _ int, _ string) string { return fmt.Sprintf("Stop #%d ✨", n) },
		func(n, total int, _ string) string { return fmt.Sprintf("Another great day (%d/%d)", n, total) },
		func(n, total int, _ string) string { return fmt.Sprintf("For you %d/%d 💕", n, total) },
	},
	StyleMemories: {
		func(n, _ int, _ string) string { return fmt.Sprintf("Memory · %d", n) },
		func(n, total int, _ string) string { return fmt.Sprintf("Time capsule %d/%d", n, total) },
		func(int, int, string) string { return "Frozen in time ⏰" },
		func(n, _ int, title string) string { return fmt.Sprintf("%s · %d", orDefault(title, "Those Years"), n) },
	},
	StyleDynamic: {
		func(n, _ int, _ string) string { return fmt.Sprintf("Adventure stop %d 🚀", n) },
		func(n, total int, _ string) string { return fmt.Sprintf("The journey goes on %d/%d", n, total) },
		func(n, total int, _ string) string { return fmt.Sprintf("GO! %d/%d 💪", n, total) },
		func(n, _ int, _ string) string { return fmt.Sprintf("More to come · %d", n) },
	},
}

var closings = map[Style]string{
	StyleCinematic: "To be continued...",
	StyleVlog:      "Thanks for watching ❤️",
	StyleMemories:  "Cherish every moment ✨",
	StyleDynamic:   "See you next time! 🎉",
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func pick(items []string, rng *rand.Rand) string {
	if len(items) == 0 {
		return ""
	}
	if rng == nil {
		return items[rand.IntN(len(items))]
	}
	return items[rng.IntN(len(items))]
}

func promptFor(s Style) stylePrompt {
	if p, ok := stylePrompts[s]; ok {
		return p
	}
	return stylePrompts[StyleCinematic]
}

// BuildPrompt writes the generation prompt for photoCount photos. The
// transition (and narration line, when voiceover is on) is drawn from rng;
// a nil rng uses the global source.
func BuildPrompt(cfg VideoConfig, photoCount int, rng *rand.Rand) string {
	sp := promptFor(cfg.Style)
	mood, ok := moods[cfg.Music]
	if !ok {
		mood = moods[MusicPeaceful]
	}

	noun := "photos"
	if photoCount == 1 {
		noun = "photo"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Create a travel video from %d %s with %s transitions. The mood should be %s.",
		sp.base, photoCount, noun, pick(sp.transitions, rng), mood)
	if cfg.AddCaptions {
		b.WriteString(" Add elegant subtitles/captions.")
	}
	if cfg.AddVoiceover {
		fmt.Fprintf(&b, " Include narration: %s", Narration(cfg.Style, rng))
	}
	return b.String()
}

// Narration returns one voiceover line for the style.
func Narration(style Style, rng *rand.Rand) string {
	lines, ok := narrations[style]
	if !ok {
		lines = narrations[StyleCinematic]
	}
	return pick(lines, rng)
}

// Caption returns the on-screen caption for the photo at index. Templates
// cycle, so the same index always gets the same caption.
func Caption(index, total int, style Style, title string) string {
	templates, ok := captionTemplates[style]
	if !ok {
		templates = captionTemplates[StyleCinematic]
	}
	return templates[index%len(templates)](index+1, total, title)
}

// ScriptCaption is one timed caption in a Script.
type ScriptCaption struct {
	PhotoIndex int    `json:"photoIndex"`
	Text       string `json:"caption"`
	Timestamp  int    `json:"timestamp"` // seconds from the start
}

// Script is the caption track of a travel video.
type Script struct {
	Opening       string          `json:"opening"`
	Captions      []ScriptCaption `json:"captions"`
	Closing       string          `json:"closing"`
	TotalDuration int             `json:"totalDuration"` // seconds
}

// BuildScript lays out captions for photoCount photos, SecondsPerPhoto apart.
func BuildScript(photoCount int, cfg VideoConfig) Script {
	s := Script{
		Opening:       orDefault(cfg.Title, DefaultOpening),
		Captions:      make([]ScriptCaption, 0, photoCount),
		TotalDuration: photoCount * SecondsPerPhoto,
	}
	for i := range photoCount {
		s.Captions = append(s.Captions, ScriptCaption{
			PhotoIndex: i,
			Text:       Caption(i, photoCount, cfg.Style, cfg.Title),
			Timestamp:  i * SecondsPerPhoto,
		})
	}

	closing, ok := closings[cfg.Style]
	if !ok {
		closing = closings[StyleMemories]
	}
	s.Closing = closing
	return s
}

// Text renders the script as plain lines, suitable for the clipboard.
func (s Script) Text() string {
	var b strings.Builder
	b.WriteString(s.Opening)
	b.WriteString("\n\n")
	for _, c := range s.Captions {
		fmt.Fprintf(&b, "[%d:%02d] %s\n", c.Timestamp/60, c.Timestamp%60, c.Text)
	}
	b.WriteString("\n")
	b.WriteString(s.Closing)
	return b.String()
}

// NewRequest builds the generation request for photos: the prompt from cfg
// and, as the on-screen caption, the first photo's caption.
func NewRequest(photos []Photo, cfg VideoConfig, rng *rand.Rand) *Request {
	req := &Request{
		Photos: photos,
		Prompt: BuildPrompt(cfg, len(photos), rng),
		Config: cfg,
	}
	if cfg.AddCaptions && len(photos) > 0 {
		req.Caption = Caption(0, len(photos), cfg.Style, cfg.Title)
	}
	return req
}
