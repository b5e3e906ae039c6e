package renderer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlRenderer "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Heading is a heading of rendered page content, used for in-page navigation.
type Heading struct {
	ID    string
	Text  string
	Level int
}

// Content is a rendered markdown page body.
type Content struct {
	HTML      []byte
	PlainText string
	Headings  []Heading
	// Front matter keys, empty when the document has none.
	Meta map[string]any
}

// Renderer turns page content into HTML and minifies finished documents.
type Renderer struct {
	md     goldmark.Markdown
	minify *minify.M
}

// New constructs a renderer with GitHub-flavored markdown, front matter and syntax highlighting.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.DefinitionList,
			extension.Footnote,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.ClassPrefix("hl-"),
					chromahtml.PreventSurroundingPre(true),
				),
				highlighting.WithWrapperRenderer(codeWrapper),
			),
			meta.Meta,
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			htmlRenderer.WithUnsafe(),
		),
	)

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{KeepDocumentTags: true, KeepEndTags: true})
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)

	return &Renderer{md: md, minify: m}
}

// Render converts markdown into HTML and collects headings, plain text and front matter.
func (r *Renderer) Render(src []byte) (*Content, error) {
	pctx := parser.NewContext()
	doc := r.md.Parser().Parse(text.NewReader(src), parser.WithContext(pctx))

	headings := make([]Heading, 0, 8)
	plain := &strings.Builder{}
	slugCounts := make(map[string]int)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			label := extractText(node, src)
			id := ""
			if attr, ok := node.AttributeString("id"); ok {
				id = attributeToString(attr)
			}
			if id == "" {
				id = uniqueSlug(slugify(label), slugCounts)
				node.SetAttributeString("id", []byte(id))
			} else {
				slugCounts[id]++
			}
			headings = append(headings, Heading{ID: id, Text: label, Level: node.Level})
		case *ast.Text:
			plain.Write(node.Segment.Value(src))
			plain.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, err
	}

	front, err := meta.TryGet(pctx)
	if err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}

	return &Content{
		HTML:      buf.Bytes(),
		PlainText: strings.Join(strings.Fields(plain.String()), " "),
		Headings:  headings,
		Meta:      front,
	}, nil
}

// MinifyHTML compacts a complete HTML document including inline styles and scripts.
func (r *Renderer) MinifyHTML(raw []byte) ([]byte, error) {
	return r.minify.Bytes("text/html", raw)
}

func extractText(root ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if n == root {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok && entering {
			sb.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func attributeToString(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}

func uniqueSlug(base string, counts map[string]int) string {
	count := counts[base]
	counts[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, count)
}

func slugify(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var sb strings.Builder
	lastDash := false
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if sb.Len() == 0 || lastDash {
				continue
			}
			sb.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

func codeWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	lang := "text"
	if raw, ok := ctx.Language(); ok && len(raw) > 0 {
		lang = string(raw)
	}
	lang = string(util.EscapeHTML([]byte(lang)))
	if entering {
		_, _ = fmt.Fprintf(w, `<pre class="hl-chroma language-%[1]s"><code class="language-%[1]s">`, lang)
		return
	}
	_, _ = w.WriteString("</code></pre>\n")
}
