// Package templates holds the server-rendered HTML components.
//
// Components are templ.Component values so handlers render them the same
// way whether they are full pages or fragments.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// htmlWriter accumulates the first write error so components can emit
// markup without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) rawf(format string, args ...any) {
	if hw.err != nil {
		return
	}
	_, hw.err = fmt.Fprintf(hw.w, format, args...)
}

// text writes s HTML-escaped.
func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

// page wraps body in the shared document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title><style>` + styles + `</style></head><body>`)
		if hw.err != nil {
			return hw.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		hw.raw(`</body></html>`)
		return hw.err
	})
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
header{background:#1f2933;color:#fff;padding:1rem 2rem}
main{padding:1.5rem 2rem;max-width:1100px}
section{background:#fff;border-radius:6px;padding:1rem 1.25rem;margin-bottom:1.25rem;box-shadow:0 1px 2px rgba(0,0,0,.08)}
table{border-collapse:collapse;width:100%}
th,td{text-align:left;padding:.4rem .6rem;border-bottom:1px solid #e4e7eb;font-size:.9rem}
.stats{display:flex;gap:1rem}
.stat{flex:1}
.stat b{display:block;font-size:1.6rem}
.status-SUCCESS{color:#1b873f}.status-FAILED{color:#c62828}.status-RUNNING,.status-PENDING{color:#b26a00}
.alert{border-left:4px solid #c62828;background:#fdecea;padding:.75rem 1rem;border-radius:4px}
.alert code{font-size:.8rem;color:#6b7280}
pre#log{background:#111827;color:#d1d5db;padding:.75rem;min-height:6rem;max-height:20rem;overflow:auto;font-size:.8rem}
`
