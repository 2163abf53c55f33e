package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var sheetTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/review_sheet.html")
	if err != nil {
		sheetTemplate = template.Must(template.New("sheet").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	sheetTemplate = template.Must(template.New("sheet").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderSheetHTML renders the review sheet template.
func RenderSheetHTML(sheet ReviewSheet) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, sheet); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.AssetTitle}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .annotation { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
  </style>
</head>
<body>
  <h1>{{.AssetTitle}}</h1>
  <div class="meta">Revision {{.RevisionNumber}} | {{.Status}}</div>
  {{.OverlaySVG}}
  {{range .Annotations}}<div class="annotation">{{.Author}}: {{.Comment}}</div>{{end}}
</body>
</html>`
