package site

import (
	"github.com/iedon/sitepack/graph"
)

type renderedPage struct {
	Directive   graph.Directive
	OutputPath  string
	Route       string
	Title       string
	Description string
	PlainText   string
	Scripts     []string
	Styles      []string
	HTML        []byte
}

func (p renderedPage) report() PageReport {
	return PageReport{
		Name:    p.Directive.Name,
		Output:  p.OutputPath,
		Title:   p.Title,
		Scripts: p.Scripts,
		Styles:  p.Styles,
	}
}
