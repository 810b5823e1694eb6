package export

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// TemplateData holds data for page template rendering
type TemplateData struct {
	Title    string
	PageID   string
	PathName string
	Body     template.HTML
}

// RenderPageHTML renders a full standalone document around the page body.
func RenderPageHTML(page Page) (string, error) {
	title := page.Name
	if title == "" {
		title = "Untitled page"
	}
	data := TemplateData{
		Title:    title,
		PageID:   page.ID,
		PathName: page.PathName,
		Body:     template.HTML(RenderElements(page.Elements)),
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
