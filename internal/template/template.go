// Package template renders RFQ message bodies. Bodies use "{Name}"
// placeholders; "{{" and "}}" produce literal braces.
package template

import (
	"errors"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Placeholder names available to body templates.
const (
	VarSupplierName  = "SupplierName"
	VarVendorName    = "VendorName"
	VarVendorAddress = "VendorAddress"
	VarCC            = "CC"
)

// markupTokens mark a body as HTML when any of them occurs.
var markupTokens = []string{"<p>", "<br>", "<html", "<div", "<span", "<table"}

var errMalformed = errors.New("malformed template")

// Renderer turns brace templates into liquid templates and renders them.
// Unknown placeholders render as empty strings.
type Renderer struct {
	engine *liquid.Engine

	mu    sync.Mutex
	cache map[string]string
}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		engine: liquid.NewEngine(),
		cache:  make(map[string]string),
	}
}

// Render substitutes vars into tmpl. A template that cannot be parsed or
// rendered is returned unchanged together with ok=false.
func (r *Renderer) Render(tmpl string, vars map[string]string) (out string, ok bool) {
	src, err := r.translate(tmpl)
	if err != nil {
		return tmpl, false
	}

	bindings := make(map[string]any, len(vars))
	for k, v := range vars {
		bindings[k] = v
	}

	rendered, lerr := r.engine.ParseAndRenderString(src, bindings)
	if lerr != nil {
		return tmpl, false
	}
	return rendered, true
}

func (r *Renderer) translate(tmpl string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src, ok := r.cache[tmpl]; ok {
		return src, nil
	}
	src, err := Translate(tmpl)
	if err != nil {
		return "", err
	}
	r.cache[tmpl] = src
	return src, nil
}

// Translate converts a brace template into liquid source. "{Name}" becomes
// "{{ Name }}"; a format spec after ':' or '!' is ignored. Unbalanced
// braces and field names that are not identifiers are malformed.
func Translate(tmpl string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '{' && strings.HasPrefix(tmpl[i:], "{{"):
			b.WriteString(`{{ "{" }}`)
			i += 2
		case c == '}' && strings.HasPrefix(tmpl[i:], "}}"):
			b.WriteString(`{{ "}" }}`)
			i += 2
		case c == '}':
			return "", errMalformed
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", errMalformed
			}
			field := tmpl[i+1 : i+end]
			if j := strings.IndexAny(field, ":!"); j >= 0 {
				field = field[:j]
			}
			if !isIdentifier(field) {
				return "", errMalformed
			}
			b.WriteString("{{ " + field + " }}")
			i += end + 1
		default:
			// Literal text never contains '{', so it cannot open a liquid
			// tag or output.
			next := strings.IndexAny(tmpl[i:], "{}")
			if next < 0 {
				next = len(tmpl) - i
			}
			b.WriteString(tmpl[i : i+next])
			i += next
		}
	}
	return b.String(), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// IsMarkup reports whether body contains HTML-looking tokens.
func IsMarkup(body string) bool {
	for _, tok := range markupTokens {
		if strings.Contains(body, tok) {
			return true
		}
	}
	return false
}
