// Prompt templates are stored as text files under prompts/ and embedded at
// compile time.

package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// StorybookSystemPrompt instructs Gemini to write a storybook as JSON.
//
//go:embed prompts/storybook-system.txt
var StorybookSystemPrompt string

//go:embed prompts/storybook-photos.txt
var storybookPhotosTemplate string

// template.Must panics on a malformed template, so a bad edit fails at startup.
var storybookPhotosTmpl = template.Must(template.New("storybook").Parse(storybookPhotosTemplate))

// PhotoContext describes one photo in the storybook prompt.
type PhotoContext struct {
	Index int
	Name  string
	// Metadata is the formatted EXIF context, or "" when none was found.
	Metadata string
}

// StorybookPromptData holds the dynamic data injected into the storybook prompt.
type StorybookPromptData struct {
	Title  string
	Style  string
	Photos []PhotoContext
}

// RenderStorybookPrompt renders the per-request storybook prompt.
func RenderStorybookPrompt(data StorybookPromptData) string {
	var buf bytes.Buffer
	// Execution errors are not expected here; whatever rendered is returned.
	_ = storybookPhotosTmpl.Execute(&buf, data)
	return buf.String()
}
