package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/fpang/swipe-story/internal/story"
)

// VideoForm collects the story video settings with Huh.
type VideoForm struct {
	form   *huh.Form
	result *VideoResult
}

// VideoResult holds the values chosen in a VideoForm.
type VideoResult struct {
	Service      string
	Style        string
	Music        string
	AddCaptions  bool
	AddVoiceover bool
	Title        string
}

// Config converts the result into a normalized VideoConfig.
func (r *VideoResult) Config() (story.VideoConfig, error) {
	cfg := story.VideoConfig{
		Style:        story.Style(r.Style),
		Music:        story.Music(r.Music),
		AddCaptions:  r.AddCaptions,
		AddVoiceover: r.AddVoiceover,
		Title:        r.Title,
	}
	return cfg, cfg.Normalize()
}

var styleLabels = map[story.Style]string{
	story.StyleCinematic: "Cinematic 🎬",
	story.StyleVlog:      "Vlog 📱",
	story.StyleMemories:  "Memories 📷",
	story.StyleDynamic:   "Dynamic ⚡",
}

var musicLabels = map[story.Music]string{
	story.MusicPeaceful:  "Peaceful 🌿",
	story.MusicAdventure: "Adventure 🏔️",
	story.MusicRomantic:  "Romantic 🌅",
	story.MusicEnergetic: "Energetic 🎉",
}

// NewVideoForm creates the settings form. services lists the vendors that
// have credentials; the first is preselected.
func NewVideoForm(services []string) *VideoForm {
	def := story.DefaultVideoConfig()
	result := &VideoResult{
		Style:       string(def.Style),
		Music:       string(def.Music),
		AddCaptions: def.AddCaptions,
	}
	if len(services) > 0 {
		result.Service = services[0]
	}

	serviceOpts := make([]huh.Option[string], len(services))
	for i, s := range services {
		serviceOpts[i] = huh.NewOption(s, s)
	}
	styleOpts := make([]huh.Option[string], len(story.Styles))
	for i, s := range story.Styles {
		styleOpts[i] = huh.NewOption(styleLabels[s], string(s))
	}
	musicOpts := make([]huh.Option[string], len(story.Musics))
	for i, m := range story.Musics {
		musicOpts[i] = huh.NewOption(musicLabels[m], string(m))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Video service").
				Options(serviceOpts...).
				Value(&result.Service),

			huh.NewSelect[string]().
				Title("Style").
				Options(styleOpts...).
				Value(&result.Style),

			huh.NewSelect[string]().
				Title("Music").
				Options(musicOpts...).
				Value(&result.Music),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Add captions?").
				Value(&result.AddCaptions),

			huh.NewConfirm().
				Title("Add voiceover?").
				Value(&result.AddVoiceover),

			huh.NewInput().
				Title("Video title").
				Placeholder(story.DefaultOpening).
				CharLimit(100).
				Validate(validateTitle).
				Value(&result.Title),
		),
	)

	return &VideoForm{form: form, result: result}
}

func validateTitle(s string) error {
	if len([]rune(strings.TrimSpace(s))) > 100 {
		return fmt.Errorf("title is longer than 100 characters")
	}
	return nil
}

// GetForm returns the underlying Huh form for Bubble Tea integration.
func (vf *VideoForm) GetForm() *huh.Form {
	return vf.form
}

// Result returns the values chosen so far.
func (vf *VideoForm) Result() *VideoResult {
	return vf.result
}
