package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type hclManifest struct {
	Pages []hclPage `hcl:"page,block"`
}

type hclPage struct {
	Name        string            `hcl:"name,label"`
	Title       string            `hcl:"title,optional"`
	Description string            `hcl:"description,optional"`
	Params      map[string]string `hcl:"params,optional"`
}

// parseHCL decodes `page "<name>" { ... }` blocks. An HCL file without blocks is an empty site.
func parseHCL(data []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl: %s", diags.Error())
	}

	var raw hclManifest
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode hcl: %s", diags.Error())
	}

	m := &Manifest{Pages: make([]Page, 0, len(raw.Pages))}
	for _, block := range raw.Pages {
		p := Page{Name: block.Name, Title: block.Title, Description: block.Description}
		if len(block.Params) > 0 {
			p.Params = make(map[string]any, len(block.Params))
			for key, value := range block.Params {
				p.Params[key] = value
			}
		}
		m.Pages = append(m.Pages, p)
	}
	return m, nil
}
