package site

import (
	"time"

	"github.com/iedon/sitepack/graph"
)

// Report summarises one successful build. It is written to build.json in the output.
type Report struct {
	ID        string         `json:"id"`
	Mode      string         `json:"mode"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  string         `json:"duration"`
	Entries   graph.EntryMap `json:"entries"`
	Pages     []PageReport   `json:"pages"`
	Files     []string       `json:"files"`
	Warnings  int            `json:"warnings"`
}

// PageReport describes one emitted HTML file.
type PageReport struct {
	Name    string   `json:"name"`
	Output  string   `json:"output"`
	Title   string   `json:"title"`
	Scripts []string `json:"scripts,omitempty"`
	Styles  []string `json:"styles,omitempty"`
}
