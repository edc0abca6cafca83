package story

import (
	"fmt"
	"strings"
)

// Style is the visual treatment of the video.
type Style string

const (
	StyleCinematic Style = "cinematic"
	StyleVlog      Style = "vlog"
	StyleMemories  Style = "memories"
	StyleDynamic   Style = "dynamic"
)

// Styles lists every style in display order.
var Styles = []Style{StyleCinematic, StyleVlog, StyleMemories, StyleDynamic}

// Music is the soundtrack mood.
type Music string

const (
	MusicPeaceful  Music = "peaceful"
	MusicAdventure Music = "adventure"
	MusicRomantic  Music = "romantic"
	MusicEnergetic Music = "energetic"
)

// Musics lists every music mood in display order.
var Musics = []Music{MusicPeaceful, MusicAdventure, MusicRomantic, MusicEnergetic}

// VideoConfig is the user's choice of how the story video should look.
type VideoConfig struct {
	Style        Style  `json:"style"`
	Music        Music  `json:"music"`
	AddCaptions  bool   `json:"addCaptions"`
	AddVoiceover bool   `json:"addVoiceover"`
	Title        string `json:"videoTitle,omitempty"`
}

// DefaultVideoConfig is what the forms start from.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Style:       StyleCinematic,
		Music:       MusicPeaceful,
		AddCaptions: true,
	}
}

// Normalize lowercases the enums, fills empty ones with defaults, and rejects
// unknown values.
func (c *VideoConfig) Normalize() error {
	c.Style = Style(strings.ToLower(strings.TrimSpace(string(c.Style))))
	c.Music = Music(strings.ToLower(strings.TrimSpace(string(c.Music))))
	c.Title = strings.TrimSpace(c.Title)

	if c.Style == "" {
		c.Style = StyleCinematic
	}
	if c.Music == "" {
		c.Music = MusicPeaceful
	}
	if _, ok := stylePrompts[c.Style]; !ok {
		return fmt.Errorf("unknown style %q", c.Style)
	}
	if _, ok := moods[c.Music]; !ok {
		return fmt.Errorf("unknown music %q", c.Music)
	}
	if len([]rune(c.Title)) > 100 {
		return fmt.Errorf("video title is longer than 100 characters")
	}
	return nil
}
