package annotation

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
)

//go:embed templates/*.html
var templateFS embed.FS

var blockTemplates *template.Template

func init() {
	content, err := templateFS.ReadFile("templates/annotation.html")
	if err != nil {
		blockTemplates = template.Must(template.New("annotation").Parse(fallbackTemplate))
		return
	}
	blockTemplates = template.Must(template.New("annotation").Parse(string(content)))
}

type entryData struct {
	Type    ExplanationType
	Label   string
	Content template.HTML
}

type blockData struct {
	Excerpt string
	Body    template.HTML
}

// renderAggregate renders history newest first.
func renderAggregate(history []Response) (string, error) {
	var buf bytes.Buffer
	for i := len(history) - 1; i >= 0; i-- {
		r := history[i]
		data := entryData{
			Type:    r.ExplanationType,
			Label:   r.ExplanationType.Label(),
			Content: template.HTML(editor.Normalize(r.Content)),
		}
		if err := blockTemplates.ExecuteTemplate(&buf, "entry", data); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// renderBlock wraps an aggregate in the generated-content container.
func renderBlock(excerpt, aggregate string) (string, error) {
	var buf bytes.Buffer
	data := blockData{Excerpt: strings.TrimSpace(excerpt), Body: template.HTML(aggregate)}
	if err := blockTemplates.ExecuteTemplate(&buf, "block", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const fallbackTemplate = `{{define "entry"}}<div class="annotation-entry" data-type="{{.Type}}"><h4>{{.Label}}</h4>{{.Content}}</div>{{end}}` +
	`{{define "block"}}<div class="annotation-block" data-annotation="generated">{{.Body}}</div>{{end}}`
