package project

import (
	"html"
	"io"
	"regexp"
	"text/template"
)

var exportTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} - Made with VIBES</title>
  <script src="https://cdnjs.cloudflare.com/ajax/libs/p5.js/1.9.0/p5.min.js"></script>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      display: flex;
      justify-content: center;
      align-items: center;
      min-height: 100vh;
      background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
    }
    canvas { border-radius: 12px; }
    .credit {
      position: fixed;
      bottom: 10px;
      right: 10px;
      color: rgba(255,255,255,0.5);
      font-family: sans-serif;
      font-size: 12px;
    }
    .credit a { color: rgba(255,255,255,0.7); }
  </style>
</head>
<body>
  <script>
// Canvas dimensions
window.__canvasWidth = 400;
window.__canvasHeight = 400;

{{.Code}}
  </script>
  <div class="credit">Made with <a href="https://vibes-roan.vercel.app" target="_blank">VIBES</a></div>
</body>
</html>`))

// ExportHTML writes p as a standalone page running its sketch with p5.js.
// The code is inserted verbatim.
func ExportHTML(w io.Writer, p *Project) error {
	return exportTemplate.Execute(w, struct{ Title, Code string }{
		Title: html.EscapeString(p.Title),
		Code:  p.Code,
	})
}

var unsafeFilename = regexp.MustCompile(`(?i)[^a-z0-9]`)

// ExportFilename is the download name for an exported project.
func ExportFilename(p *Project) string {
	return unsafeFilename.ReplaceAllString(p.Title, "_") + ".html"
}
