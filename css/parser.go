// Package css indexes stylesheets used with rendered documents, so layout
// classes referenced by documents can be checked against them.
package css

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser indexes CSS stylesheets.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

var classSelector = regexp.MustCompile(`\.(-?[_a-zA-Z][_a-zA-Z0-9-]*)`)

// Parse indexes CSS text. The optional source parameter identifies what's
// being parsed (for debug logging). Parsing never fails, problems are
// reported in Warnings.
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := newStylesheet()

	name := ""
	if len(source) > 0 {
		name = source[0]
	}
	p.log.Debug("Parsing CSS", zap.String("source", name), zap.Int("bytes", len(data)))

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				sheet.Warnings = append(sheet.Warnings, err.Error())
				p.log.Debug("CSS parse error", zap.String("source", name), zap.Error(err))
			}
			p.log.Debug("Parsed CSS",
				zap.String("source", name),
				zap.Int("rules", sheet.Rules),
				zap.Int("classes", len(sheet.Classes)))
			return sheet

		case css.AtRuleGrammar:
			if string(data) == "@import" {
				if url := extractImportURL(parser.Values()); url != "" {
					sheet.Imports = append(sheet.Imports, url)
				}
			}

		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			if gt == css.BeginRulesetGrammar {
				sheet.Rules++
			}
			seen := make(map[string]bool)
			for _, sel := range selectors(data, parser.Values()) {
				for _, m := range classSelector.FindAllStringSubmatch(sel, -1) {
					if !seen[m[1]] {
						seen[m[1]] = true
						sheet.Classes[m[1]]++
					}
				}
			}
		}
	}
}

// extractImportURL extracts the URL from @import tokens.
// Handles: @import "url"; @import url("url"); @import url(url);
func extractImportURL(tokens []css.Token) string {
	for _, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			s := strings.TrimSuffix(strings.TrimPrefix(string(t.Data), "url("), ")")
			return unquote(strings.TrimSpace(s))
		}
	}
	return ""
}

// selectors splits grouped selector into individual ones.
func selectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var out []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
