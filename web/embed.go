package web

import "embed"

// Templates embeds HTML templates used for document export.
//
//go:embed templates/**/*.html
var Templates embed.FS
