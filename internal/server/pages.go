package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// errorPage renders a minimal HTML page for an HTTP error status.
func errorPage(status int, detail string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(fmt.Sprintf("%d %s", status, http.StatusText(status)))
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>body{font-family:system-ui,sans-serif;margin:3em;color:#333}h1{font-weight:500}code{color:#a33}</style>
</head>
<body>
<h1>%s</h1>
<p><code>%s</code></p>
</body>
</html>
`, title, title, templ.EscapeString(detail))
		return err
	})
}
