package site

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"

	"github.com/iedon/sitepack/fsutil"
)

const sitemapFile = "sitemap.xml"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// writeSitemap emits sitemap.xml for every rendered page. It is skipped when the base URL
// is not absolute since sitemap locations must be.
func (s *Service) writeSitemap(dir string, pages []renderedPage, lastMod string) error {
	if absoluteURL(s.cfg.BaseURL, "/") == "" {
		return nil
	}

	set := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(pages)),
	}
	for _, pg := range pages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     absoluteURL(s.cfg.BaseURL, pg.Route),
			LastMod: lastMod,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	if err := fsutil.WriteFile(filepath.Join(dir, sitemapFile), buf.Bytes()); err != nil {
		return fmt.Errorf("write sitemap: %w", err)
	}
	return nil
}
