package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/iedon/sitepack/graph"
	"github.com/rs/zerolog"
)

// ErrBuildFailed wraps compilation errors reported by esbuild.
var ErrBuildFailed = errors.New("esbuild failed with errors")

const (
	scriptDir = "js"
	styleDir  = "css"
	chunkDir  = "js/chunks"
)

// assetLoaders routes images and fonts to the file loader so they are emitted next to the
// bundle with their source-relative path.
var assetLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".eot":   api.LoaderFile,
	".ttf":   api.LoaderFile,
	".otf":   api.LoaderFile,
}

type buildMetadata struct {
	Outputs map[string]outputInfo `json:"outputs"`
}

type outputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []importInfo `json:"imports"`
}

type importInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Assets are the URLs a page must reference for one entry.
type Assets struct {
	Scripts []string
	Styles  []string
	Module  bool
}

// Result describes one bundler run.
type Result struct {
	// Files are the emitted paths relative to the output directory, sorted.
	Files    []string
	assets   map[string]Assets
	warnings int
}

// Assets returns the script and style URLs for the named entry.
func (r *Result) Assets(entry string) (Assets, bool) {
	a, ok := r.assets[entry]
	return a, ok
}

// Warnings reports how many esbuild warnings the run produced.
func (r *Result) Warnings() int {
	return r.warnings
}

// Bundler compiles graph entries with esbuild.
type Bundler struct {
	config Config
	mu     sync.Mutex
}

// New creates a bundler with the given configuration.
func New(config Config) *Bundler {
	return &Bundler{config: config}
}

// Build compiles entries into outDir and resolves the per-entry asset lists from the metafile.
func (b *Bundler) Build(ctx context.Context, entries []graph.Entry, outDir string) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no entry points")
	}

	log := zerolog.Ctx(ctx)

	root, err := filepath.Abs(b.config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	inputs := make(map[string]string, len(entries))
	points := make([]api.EntryPoint, 0, len(entries))
	for _, entry := range entries {
		inputs[normalizeInput(entry.Path)] = entry.Name
		points = append(points, api.EntryPoint{
			InputPath:  "./" + normalizeInput(entry.Path),
			OutputPath: path.Join(scriptDir, entry.Name),
		})
	}

	log.Info().Int("entries", len(points)).Msg("bundling scripts")

	result := api.Build(b.options(root, outDir, points))

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", formatMessage(msg)).Msg("bundle warning")
	}
	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", formatMessage(msg)).Msg("bundle error")
		}
		return nil, fmt.Errorf("%w: %s", ErrBuildFailed, formatMessage(result.Errors[0]))
	}

	files := make([]string, 0, len(result.OutputFiles))
	for _, file := range result.OutputFiles {
		rel, err := filepath.Rel(outDir, file.Path)
		if err != nil {
			return nil, fmt.Errorf("output path %s: %w", file.Path, err)
		}
		rel = relocate(filepath.ToSlash(rel))
		target := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, file.Contents, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}
		log.Debug().Str("file", rel).Msg("built file")
		files = append(files, rel)
	}
	sort.Strings(files)

	var metadata buildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}

	assets, err := b.resolveAssets(metadata, inputs, root, outDir)
	if err != nil {
		return nil, err
	}

	return &Result{Files: files, assets: assets, warnings: len(result.Warnings)}, nil
}

func (b *Bundler) options(root, outDir string, points []api.EntryPoint) api.BuildOptions {
	format := api.FormatIIFE
	if b.config.Splitting {
		format = api.FormatESModule
	}
	nodeEnv := `"development"`
	if b.config.Production {
		nodeEnv = `"production"`
	}

	return api.BuildOptions{
		EntryPointsAdvanced: points,
		AbsWorkingDir:       root,
		Bundle:              true,
		Write:               false,
		Outdir:              outDir,
		Outbase:             filepath.Join(root, filepath.FromSlash(b.config.SourceDir)),
		AssetNames:          "[dir]/[name]",
		PublicPath:          b.url(""),
		ChunkNames:          chunkDir + "/[name]-[hash]",
		Loader:              assetLoaders,
		Format:              format,
		Splitting:           b.config.Splitting,
		Platform:            api.PlatformBrowser,
		Target:              api.ES2020,
		MinifyWhitespace:    b.config.Minify,
		MinifyIdentifiers:   b.config.Minify,
		MinifySyntax:        b.config.Minify,
		TreeShaking:         api.TreeShakingTrue,
		Sourcemap:           cond(b.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Define:              map[string]string{"process.env.NODE_ENV": nodeEnv},
		Plugins:             []api.Plugin{rootURLPlugin},
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
	}
}

// rootURLPlugin leaves root-relative url() references in stylesheets untouched. They point at
// files copied verbatim into the output, such as url(/assets/bg.png).
var rootURLPlugin = api.Plugin{
	Name: "root-url",
	Setup: func(build api.PluginBuild) {
		build.OnResolve(api.OnResolveOptions{Filter: `^/`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			if args.Kind != api.ResolveCSSURLToken {
				return api.OnResolveResult{}, nil
			}
			return api.OnResolveResult{Path: args.Path, External: true}, nil
		})
	},
}

// resolveAssets maps every entry name to the scripts and styles it pulls in, following
// chunk imports the same way a browser would load them.
func (b *Bundler) resolveAssets(metadata buildMetadata, inputs map[string]string, root, outDir string) (map[string]Assets, error) {
	outputs := make(map[string]outputInfo, len(metadata.Outputs))
	for key, info := range metadata.Outputs {
		rel, err := b.outputRel(key, root, outDir)
		if err != nil {
			return nil, err
		}
		outputs[rel] = info
	}

	assets := make(map[string]Assets, len(inputs))
	for rel, info := range outputs {
		if info.EntryPoint == "" || !strings.HasSuffix(rel, ".js") {
			continue
		}
		name, ok := inputs[normalizeInput(info.EntryPoint)]
		if !ok {
			continue
		}

		a := Assets{Module: b.config.Splitting}
		visited := map[string]bool{rel: true}
		a.Scripts = append(a.Scripts, b.url(rel))
		b.addDependencies(info, outputs, root, outDir, &a, visited)
		if info.CSSBundle != "" {
			cssRel, err := b.outputRel(info.CSSBundle, root, outDir)
			if err != nil {
				return nil, err
			}
			a.Styles = append(a.Styles, b.url(cssRel))
		}
		assets[name] = a
	}

	for input, name := range inputs {
		if _, ok := assets[name]; !ok {
			return nil, fmt.Errorf("entry %q (%s) not found in metafile", name, input)
		}
	}
	return assets, nil
}

func (b *Bundler) addDependencies(info outputInfo, outputs map[string]outputInfo, root, outDir string, a *Assets, visited map[string]bool) {
	for _, imp := range info.Imports {
		if imp.Kind == "dynamic-import" {
			continue
		}
		rel, err := b.outputRel(imp.Path, root, outDir)
		if err != nil || visited[rel] || !strings.HasSuffix(rel, ".js") {
			continue
		}
		chunk, exists := outputs[rel]
		if !exists {
			continue
		}
		visited[rel] = true
		a.Scripts = append(a.Scripts, b.url(rel))
		b.addDependencies(chunk, outputs, root, outDir, a, visited)
	}
}

// outputRel converts a metafile output key (relative to the working directory) to a path
// relative to the output directory, after CSS relocation.
func (b *Bundler) outputRel(key, root, outDir string) (string, error) {
	rel, err := filepath.Rel(outDir, filepath.Join(root, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("metafile output %s: %w", key, err)
	}
	return relocate(filepath.ToSlash(rel)), nil
}

func (b *Bundler) url(rel string) string {
	prefix := b.config.PublicPath
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + rel
}

// relocate moves stylesheets extracted next to an entry script into the styles directory.
func relocate(rel string) string {
	if !strings.HasPrefix(rel, scriptDir+"/") || strings.HasPrefix(rel, chunkDir+"/") {
		return rel
	}
	if strings.HasSuffix(rel, ".css") || strings.HasSuffix(rel, ".css.map") {
		return styleDir + "/" + strings.TrimPrefix(rel, scriptDir+"/")
	}
	return rel
}

func normalizeInput(p string) string {
	cleaned := path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(cleaned, "./")
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
