package bundler

// Config controls how entry scripts are compiled.
type Config struct {
	// Absolute project root; esbuild resolves inputs and reports metafile paths against it.
	Root string
	// Directory asset paths are kept relative to (e.g. "src").
	SourceDir string
	// Prefix prepended to emitted file paths when building script and style URLs.
	PublicPath string
	Minify     bool
	SourceMap  bool
	// Splitting switches to ES modules with shared chunks under js/chunks.
	Splitting  bool
	Production bool
}

// DefaultConfig returns a development configuration rooted at root.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		SourceDir:  "src",
		PublicPath: "/",
		SourceMap:  true,
	}
}
