// Package assets embeds the files served under /assets/, including the
// browser side of the reload channel.
package assets

import (
	"embed"
	"io/fs"
)

// Snippet is the markup injected into every served HTML document.
const Snippet = `<script src="/assets/autoreload.js"></script>` + "\n"

// ClientScript is the path of the reload client inside FS.
const ClientScript = "autoreload.js"

//go:embed static
var embedFS embed.FS

// FS returns the embedded assets rooted at the static directory.
func FS() fs.FS {
	sub, err := fs.Sub(embedFS, "static")
	if err != nil {
		// "static" is embedded above, so Sub cannot fail.
		panic(err)
	}
	return sub
}
