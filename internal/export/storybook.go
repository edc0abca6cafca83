// Package export renders the results of a triage session: a standalone HTML
// storybook and a ZIP archive of the kept photos.
package export

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/fpang/swipe-story/internal/assets"
)

var storybookTmpl = template.Must(template.New("storybook").Parse(assets.StorybookHTML))

// Book is the data rendered into the storybook page.
type Book struct {
	Title   string
	Created string
	Closing string
	Pages   []Page
}

// Page is one photo in the storybook.
type Page struct {
	// Src is an image URL or data URI; build it with DataURI or ImageURL.
	Src     template.URL
	Name    string
	Caption string
	Meta    string
}

// DataURI embeds data as a base64 data URI. Non-image MIME types yield an
// empty URL so the page renders without the image.
func DataURI(mimeType string, data []byte) template.URL {
	if !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	return template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// ImageURL accepts only http(s) URLs, such as presigned S3 links.
func ImageURL(u string) template.URL {
	if strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") {
		return template.URL(u)
	}
	return ""
}

// Storybook writes b as a standalone HTML document.
func Storybook(w io.Writer, b Book) error {
	if b.Title == "" {
		b.Title = "My Travel Story"
	}
	if err := storybookTmpl.Execute(w, b); err != nil {
		return fmt.Errorf("render storybook: %w", err)
	}
	return nil
}
