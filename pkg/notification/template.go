package notification

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

func renderText(tmpl string, data map[string]string) (string, error) {
	t, err := texttemplate.New("text").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHtml(tmpl string, data map[string]string) (string, error) {
	t, err := htmltemplate.New("html").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
