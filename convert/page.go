package convert

import (
	"bytes"
	"fmt"
	"html/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"mkd/misc"
)

var pageTemplate = template.Must(template.New("page").Funcs(sprig.HtmlFuncMap()).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="generator" content="{{ .Generator }}">
<title>{{ .Title | trim }}</title>
<style>
{{ .Style }}
</style>
</head>
<body>
<div class="markdown-preview">
{{ .Body }}
</div>
</body>
</html>
`))

// wrapPage turns rendered fragment into complete page with embedded
// stylesheet.
func wrapPage(title string, style []byte, body string) (string, error) {
	buf := new(bytes.Buffer)
	err := pageTemplate.Execute(buf, struct {
		Generator string
		Title     string
		Style     template.CSS
		Body      template.HTML
	}{
		Generator: misc.GetAppName() + " " + misc.GetVersion(),
		Title:     title,
		Style:     template.CSS(style),
		Body:      template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("unable to build standalone page: %w", err)
	}
	return buf.String(), nil
}
