package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"mkd/config"
	"mkd/markup"
)

// document is a single rendered source on its way to destination.
type document struct {
	// path of the source relative to processed directory or archive,
	// "-" for standard input
	src      string
	source   string
	title    string
	owner    string
	result   *markup.Result
	rendered time.Time
}

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Slug       string
	SourceFile string
	SourceDir  string
	Owner      string
	Date       string
	Args       []string
	Tools      []string
	Components []string
	Generated  int
	Failed     int
}

func buildValues(d *document, name config.TemplateFieldName) Values {
	v := Values{
		Context:    string(name),
		Title:      d.title,
		Slug:       slug.Make(d.title),
		SourceFile: strings.TrimSuffix(filepath.Base(d.src), filepath.Ext(d.src)),
		SourceDir:  filepath.ToSlash(filepath.Dir(d.src)),
		Owner:      d.owner,
	}
	if v.SourceDir == "." {
		v.SourceDir = ""
	}
	if !d.rendered.IsZero() {
		v.Date = d.rendered.Format("2006-01-02")
	}
	if d.result != nil {
		v.Args, v.Tools, v.Components = d.result.Symbols.Names()
		v.Generated = len(d.result.Generated)
		for _, o := range d.result.Generated {
			if o.Err != nil {
				v.Failed++
			}
		}
	}
	return v
}

func expandTemplate(d *document, name config.TemplateFieldName, field string) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, buildValues(d, name)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
