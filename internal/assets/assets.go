// Package assets provides embedded static assets for the application.
package assets

import (
	_ "embed"
)

// StorybookHTML is the html/template source for the downloadable storybook.
// It expects export.Book as its data.
//
//go:embed templates/storybook.html
var StorybookHTML string
