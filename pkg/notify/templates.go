package notify

import (
	"bytes"
	_ "embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

type ConfirmationParams struct {
	Name         string
	Industry     string
	Message      string
	BrandingName string
}

// Paragraphs splits Message on blank lines.
func (p ConfirmationParams) Paragraphs() []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(p.Message, "\r\n", "\n"), "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			out = append(out, para)
		}
	}
	return out
}

var (
	htmlTemplate = htmltemplate.New("confirmation.html").Funcs(sprig.FuncMap())
	textTemplate = texttemplate.New("confirmation.txt").Funcs(sprig.TxtFuncMap())

	//go:embed templates/confirmation.html
	htmlTemplateRaw string
	//go:embed templates/confirmation.txt
	textTemplateRaw string
)

func init() {
	if _, err := htmlTemplate.Parse(htmlTemplateRaw); err != nil {
		panic(err)
	}
	if _, err := textTemplate.Parse(textTemplateRaw); err != nil {
		panic(err)
	}
}

func RenderHTML(p ConfirmationParams) (string, error) {
	b := bytes.Buffer{}
	err := htmlTemplate.Execute(&b, p)
	return b.String(), err
}

func RenderText(p ConfirmationParams) (string, error) {
	b := bytes.Buffer{}
	err := textTemplate.Execute(&b, p)
	return b.String(), err
}

// ParseSubject compiles a subject line template. Lead fields are available as
// {{ .Name }} and {{ .Industry }}.
func ParseSubject(raw string) (*texttemplate.Template, error) {
	return texttemplate.New("subject").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(raw)
}

func renderSubject(t *texttemplate.Template, p ConfirmationParams) (string, error) {
	b := bytes.Buffer{}
	if err := t.Execute(&b, p); err != nil {
		return "", err
	}
	// a subject is a single header line
	return strings.Join(strings.Fields(b.String()), " "), nil
}
