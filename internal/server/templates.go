package server

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFunctions = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("02 Jan 2006, 15:04")
	},
}

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFunctions).ParseFS(templateFS, "templates/*.html")
}
