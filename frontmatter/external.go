package frontmatter

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"acrf/common"
	"acrf/toc"
)

//go:embed toc.html.tmpl
var defaultPage string

// External renders trees to HTML page and converts it to PDF with external
// program (headless browser for example). Leaves become anchors referring to
// the form id, browsers turn them into named destinations.
type External struct {
	log     *zap.Logger
	command string
	args    []*template.Template
	page    *template.Template
	title   string
}

// ArgValues are available to command argument templates.
type ArgValues struct {
	HTML string
	PDF  string
}

// NewExternal prepares renderer. Every argument is a template expanded with
// ArgValues. When page is empty built-in HTML template is used.
func NewExternal(command string, args []string, page, title string, log *zap.Logger) (*External, error) {
	if command == "" {
		return nil, fmt.Errorf("external renderer command is not specified")
	}
	funcs := sprig.FuncMap()
	funcs["id"] = func(n *toc.Node) string {
		if n.ID == nil {
			return ""
		}
		return strconv.Itoa(*n.ID)
	}

	e := &External{log: log.Named("frontmatter"), command: command, title: title}
	for i, arg := range args {
		t, err := template.New(fmt.Sprintf("arg%d", i)).Funcs(funcs).Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("unable to parse argument template '%s': %w", arg, err)
		}
		e.args = append(e.args, t)
	}

	if page == "" {
		page = defaultPage
	}
	t, err := template.New("page").Funcs(funcs).Parse(page)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page template: %w", err)
	}
	e.page = t
	return e, nil
}

// Page expands HTML template for the trees.
func (e *External) Page(trees []*toc.Node) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		Title string
		Trees []*toc.Node
	}{Title: e.title, Trees: trees}
	if err := e.page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("unable to execute page template: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *External) Render(ctx context.Context, trees []*toc.Node, destination string) error {
	page, err := e.Page(trees)
	if err != nil {
		return err
	}
	html := strings.TrimSuffix(destination, filepath.Ext(destination)) + ".html"
	if err := os.WriteFile(html, page, 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", html, err)
	}

	html, err = filepath.Abs(html)
	if err != nil {
		return err
	}
	pdf, err := filepath.Abs(destination)
	if err != nil {
		return err
	}

	values := ArgValues{HTML: filepath.ToSlash(html), PDF: pdf}
	args := make([]string, 0, len(e.args))
	for _, t := range e.args {
		var buf bytes.Buffer
		if err := t.Execute(&buf, values); err != nil {
			return fmt.Errorf("unable to expand argument '%s': %w", t.Name(), err)
		}
		args = append(args, buf.String())
	}

	if err := common.Run(ctx, e.log, e.command, args...); err != nil {
		return fmt.Errorf("front matter renderer failed: %w", err)
	}
	if _, err := os.Stat(pdf); err != nil {
		return fmt.Errorf("front matter renderer did not produce '%s': %w", pdf, err)
	}
	e.log.Debug("Front matter rendered", zap.String("html", html), zap.String("destination", pdf))
	return nil
}
