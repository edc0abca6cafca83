// Package narrator writes a travel storybook for a set of kept photos using
// Gemini. The photos are sent inline together with their EXIF context, and
// Gemini answers with a title, one caption per photo, and a closing line.
//
// When no Gemini key is configured callers fall back to Fallback, which lays
// out the same shape from the video caption templates.
package narrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/swipe-story/internal/assets"
	"github.com/fpang/swipe-story/internal/filehandler"
	"github.com/fpang/swipe-story/internal/jsonutil"
	"github.com/fpang/swipe-story/internal/story"
)

// DefaultModelName is the Gemini model used unless GEMINI_MODEL says otherwise.
const DefaultModelName = "gemini-3-flash-preview"

// MaxPhotos caps how many photos are sent in one request.
const MaxPhotos = 50

// ModelName returns GEMINI_MODEL, or DefaultModelName.
func ModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}

// ContentGenerator is the slice of the genai client the narrator needs.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Photo is one storybook input.
type Photo struct {
	Name     string
	MIMEType string
	Data     []byte
	// Metadata is optional; nil means nothing was extracted.
	Metadata *filehandler.ImageMetadata
}

// Chapter is the caption for one photo.
type Chapter struct {
	PhotoIndex int    `json:"photoIndex"`
	Caption    string `json:"caption"`
}

// Story is a generated storybook.
type Story struct {
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`
	Closing  string    `json:"closing"`
}

// Text renders the story as plain paragraphs.
func (s *Story) Text() string {
	var b strings.Builder
	b.WriteString(s.Title)
	for _, c := range s.Chapters {
		b.WriteString("\n\n")
		b.WriteString(c.Caption)
	}
	if s.Closing != "" {
		b.WriteString("\n\n")
		b.WriteString(s.Closing)
	}
	return b.String()
}

// Caption returns the caption for the photo at index, or "".
func (s *Story) Caption(index int) string {
	for _, c := range s.Chapters {
		if c.PhotoIndex == index {
			return c.Caption
		}
	}
	return ""
}

// Narrator generates storybooks.
type Narrator struct {
	models ContentGenerator
	model  string
}

// New creates a Narrator over models. An empty model uses ModelName().
func New(models ContentGenerator, model string) *Narrator {
	if model == "" {
		model = ModelName()
	}
	return &Narrator{models: models, model: model}
}

// NewFromAPIKey creates a Gemini API client for apiKey and wraps it.
func NewFromAPIKey(ctx context.Context, apiKey, model string) (*Narrator, *genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return New(client.Models, model), client, nil
}

// Model returns the Gemini model name in use.
func (n *Narrator) Model() string { return n.model }

// Narrate asks Gemini for a storybook covering photos.
func (n *Narrator) Narrate(ctx context.Context, photos []Photo, cfg story.VideoConfig) (*Story, error) {
	if len(photos) == 0 {
		return nil, fmt.Errorf("no photos to narrate")
	}
	if len(photos) > MaxPhotos {
		return nil, fmt.Errorf("too many photos for one storybook: %d (max %d)", len(photos), MaxPhotos)
	}

	data := assets.StorybookPromptData{Title: cfg.Title, Style: string(cfg.Style)}
	parts := make([]*genai.Part, 0, len(photos)+1)
	for i, p := range photos {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
		})
		pc := assets.PhotoContext{Index: i, Name: p.Name}
		if p.Metadata != nil {
			pc.Metadata = p.Metadata.FormatMetadataContext()
		}
		data.Photos = append(data.Photos, pc)
	}
	prompt := assets.RenderStorybookPrompt(data)
	parts = append(parts, &genai.Part{Text: prompt})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.StorybookSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
	}

	log.Info().
		Int("photos", len(photos)).
		Str("model", n.model).
		Msg("Sending photos to Gemini for storybook generation...")

	start := time.Now()
	resp, err := n.models.GenerateContent(ctx, n.model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	duration := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Failed to generate storybook from Gemini")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("received empty response from Gemini API")
	}

	text := resp.Text()
	log.Debug().Int("response_length", len(text)).Dur("duration", duration).Msg("Gemini storybook response received")

	s, err := parseStory(text, len(photos))
	if err != nil {
		return nil, err
	}
	if s.Title == "" {
		s.Title = fallbackTitle(cfg)
	}
	log.Info().Int("chapters", len(s.Chapters)).Str("title", s.Title).Msg("Storybook generation complete")
	return s, nil
}

func parseStory(text string, photoCount int) (*Story, error) {
	s, err := jsonutil.ParseJSON[Story](text)
	if err != nil {
		log.Error().Err(err).Int("response_length", len(text)).Msg("Failed to parse storybook response")
		return nil, fmt.Errorf("storybook response: %w", err)
	}

	// Keep one chapter per photo, in photo order, dropping indexes Gemini
	// made up.
	byIndex := make(map[int]string, len(s.Chapters))
	for _, c := range s.Chapters {
		if c.PhotoIndex >= 0 && c.PhotoIndex < photoCount && strings.TrimSpace(c.Caption) != "" {
			if _, dup := byIndex[c.PhotoIndex]; !dup {
				byIndex[c.PhotoIndex] = strings.TrimSpace(c.Caption)
			}
		}
	}
	if len(byIndex) == 0 {
		return nil, fmt.Errorf("storybook response has no usable chapters")
	}

	chapters := make([]Chapter, 0, len(byIndex))
	for i := range photoCount {
		if c, ok := byIndex[i]; ok {
			chapters = append(chapters, Chapter{PhotoIndex: i, Caption: c})
		}
	}
	return &Story{
		Title:    strings.TrimSpace(s.Title),
		Chapters: chapters,
		Closing:  strings.TrimSpace(s.Closing),
	}, nil
}

// Fallback builds a storybook from the video caption templates, for when
// Gemini is not configured or fails.
func Fallback(photoCount int, cfg story.VideoConfig) *Story {
	script := story.BuildScript(photoCount, cfg)
	s := &Story{Title: script.Opening, Closing: script.Closing}
	for _, c := range script.Captions {
		s.Chapters = append(s.Chapters, Chapter{PhotoIndex: c.PhotoIndex, Caption: c.Text})
	}
	return s
}

func fallbackTitle(cfg story.VideoConfig) string {
	if cfg.Title != "" {
		return cfg.Title
	}
	return story.DefaultOpening
}
