// Package convert renders markdown sources found in files, directories, zip
// archives or standard input into HTML files.
package convert

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/ianaindex"

	"mkd/archive"
	"mkd/css"
	"mkd/generate"
	"mkd/library"
	"mkd/markup"
	"mkd/state"
)

// stdinName is used in place of source path to read from standard input
// and write to standard output.
const stdinName = "-"

// Run is "render" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src != stdinName {
		if src, err = filepath.Abs(src); err != nil {
			return err
		}
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if env.Cfg.Render.StylesheetPath != "" {
		data, err := os.ReadFile(env.Cfg.Render.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read style css from %q: %w", env.Cfg.Render.StylesheetPath, err)
		}
		env.DefaultStyle = data
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	env.Offline, env.Save = cmd.Bool("offline"), cmd.Bool("save")
	env.Standalone = env.Cfg.Render.Standalone || cmd.Bool("standalone")
	env.Owner = cmd.String("owner")
	if env.Save && env.Owner == "" {
		return errors.New("documents could not be saved without owner, use --owner")
	}

	// Neither zip nor markdown define encoding, old sources may need archaic
	// code page forced for both file names in archives and content
	cp := cmd.String("charset")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 names and sources", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Bool("offline", env.Offline))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// pipeline keeps everything shared by documents rendered during single run.
type pipeline struct {
	env      *state.LocalEnv
	renderer *markup.Renderer
	sheet    *css.Stylesheet
	lib      *library.Library
	client   *http.Client
	stdout   io.Writer
	group    errgroup.Group
	log      *zap.Logger

	mu     sync.Mutex
	failed error
	count  int
}

func newPipeline(ctx context.Context, log *zap.Logger) (*pipeline, error) {
	env := state.EnvFromContext(ctx)

	p := &pipeline{
		env:    env,
		stdout: os.Stdout,
		log:    log,
	}

	var gen generate.Generator
	if !env.Offline {
		var err error
		if gen, err = generate.New(ctx, &env.Cfg.Generation, log); err != nil {
			return nil, fmt.Errorf("unable to prepare generation backend: %w", err)
		}
	}
	if gen == nil {
		log.Debug("Content generation is disabled")
	}
	p.renderer = markup.New(
		markup.WithEmoji(env.Cfg.Render.Emoji),
		markup.WithGenerator(gen),
		markup.WithTimeout(env.Cfg.Generation.Timeout),
		markup.WithSanitizer(env.Cfg.Render.Sanitize),
		markup.WithObserver(func(snapshot string) {
			log.Debug("Render progress", zap.Int("size", len(snapshot)), zap.Int("pending", strings.Count(snapshot, `class="ai-loading"`)))
		}),
		markup.WithLogger(log),
	)

	p.sheet = loadStylesheet(env.DefaultStyle, env.Cfg.Render.StylesheetPath, log)
	for _, w := range p.sheet.Warnings {
		log.Warn("Stylesheet problem", zap.String("warning", w))
	}

	if env.Cfg.Render.IncludeDepth > 0 && !env.Offline {
		p.client = &http.Client{Timeout: env.Cfg.Generation.Timeout}
	}

	if env.Save {
		path := env.Cfg.Library.Path
		if path == "" {
			var err error
			if path, err = library.DefaultPath(); err != nil {
				return nil, err
			}
		}
		lib, err := library.Open(path, log)
		if err != nil {
			return nil, err
		}
		p.lib = lib
	}

	p.group.SetLimit(max(env.Cfg.Render.Workers, 1))
	return p, nil
}

// loadStylesheet indexes stylesheet together with local files it imports,
// remote imports are only noted.
func loadStylesheet(data []byte, path string, log *zap.Logger) *css.Stylesheet {
	parser := css.NewParser(log)
	sheet := parser.Parse(data, "stylesheet")
	if path == "" {
		return sheet
	}
	base := filepath.Dir(path)
	for _, imp := range sheet.Imports {
		if strings.Contains(imp, "://") {
			log.Debug("Remote stylesheet import is not followed", zap.String("url", imp))
			continue
		}
		name := imp
		if !filepath.IsAbs(name) {
			name = filepath.Join(base, name)
		}
		data, err := os.ReadFile(name)
		if err != nil {
			sheet.Warnings = append(sheet.Warnings, fmt.Sprintf("unable to read imported stylesheet %q: %v", imp, err))
			continue
		}
		sheet.Merge(parser.Parse(data, name))
	}
	return sheet
}

// submit schedules rendering job, blocking when all workers are busy.
// Failures are logged and remembered, processing continues.
func (p *pipeline) submit(ctx context.Context, name string, job func() error) {
	p.group.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := job(); err != nil {
			p.log.Error("Unable to process file", zap.String("file", name), zap.Error(err))
			p.mu.Lock()
			p.failed = multierr.Append(p.failed, fmt.Errorf("%s: %w", name, err))
			p.mu.Unlock()
		}
		return nil
	})
}

// finish waits for all scheduled jobs and releases resources.
func (p *pipeline) finish() error {
	err := p.group.Wait()
	if p.lib != nil {
		err = multierr.Append(err, p.lib.Close())
	}
	if errs := multierr.Errors(p.failed); len(errs) > 0 {
		err = multierr.Append(err, fmt.Errorf("%d of %d documents failed: %w", len(errs), p.count, p.failed))
	}
	return err
}

// process handles the core rendering logic independently of CLI framework. It
// determines the input type (standard input, directory, archive, or single
// file) and processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := newPipeline(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, p.finish())
	}()

	if src == stdinName {
		p.count++
		p.submit(ctx, src, func() error {
			in := bufio.NewReader(os.Stdin)
			head, _ := in.Peek(4)
			return p.processDocument(ctx, selectReader(in, detectUTF(head)), src, dst)
		})
		return nil
	}
	return p.locate(ctx, src, dst)
}

func (p *pipeline) locate(ctx context.Context, src, dst string) error {
	exts := p.env.Cfg.Render.Extensions

	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := p.processDir(ctx, head, dst); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := p.processArchive(ctx, head, tail, "", dst); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		source, enc, err := isSourceFile(head, exts)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if source && len(tail) == 0 {
			// we have document, it cannot have tail
			p.count++
			p.submit(ctx, head, func() error {
				file, err := os.Open(head)
				if err != nil {
					return err
				}
				defer file.Close()
				return p.processDocument(ctx, selectReader(file, enc), filepath.Base(head), dst)
			})
			break
		}
		return fmt.Errorf("input was not recognized as markdown source (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding markdown sources and archives and
// schedules them for rendering.
func (p *pipeline) processDir(ctx context.Context, dir, dst string) (err error) {
	exts := p.env.Cfg.Render.Extensions

	count := 0
	defer func() {
		if err == nil && count == 0 {
			p.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			p.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			p.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := p.processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst); err != nil {
				p.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		source, enc, err := isSourceFile(path, exts)
		if err != nil {
			p.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !source {
			p.log.Debug("Skipping file, not recognized as markdown source or archive", zap.String("file", path))
			return nil
		}

		count++
		p.count++

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		p.submit(ctx, path, func() error {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			return p.processDocument(ctx, selectReader(file, enc), src, dst)
		})
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds markdown sources under
// "pathIn" and schedules them for rendering. Archive is closed when walk
// ends, so entries are read here and rendered later.
func (p *pipeline) processArchive(ctx context.Context, path, pathIn, pathOut, dst string) (err error) {
	exts := p.env.Cfg.Render.Extensions
	cp := p.env.CodePage

	count := 0
	defer func() {
		if err == nil && count == 0 {
			p.log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	match := archive.ByExtension(exts...)
	inPath := func(name string) bool {
		name = strings.TrimPrefix(name, "/")
		prefix := strings.Trim(filepath.ToSlash(pathIn), "/")
		return match(name) && (prefix == "" || name == prefix || strings.HasPrefix(name, prefix+"/"))
	}

	err = archive.Walk(path, inPath, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		source, enc, err := isSourceInArchive(f, exts)
		if err != nil {
			p.log.Warn("Skipping file in archive",
				zap.String("archive", arc), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !source {
			p.log.Debug("Skipping file, not recognized as markdown source", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++
		p.count++

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				p.log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}

		name := arc + ":" + f.FileHeader.Name
		r, err := f.Open()
		if err != nil {
			p.submit(ctx, name, func() error { return err })
			return nil
		}
		data, err := io.ReadAll(selectReader(r, enc))
		r.Close()
		if err != nil {
			p.submit(ctx, name, func() error { return err })
			return nil
		}
		p.submit(ctx, name, func() error {
			return p.processDocument(ctx, bytes.NewReader(data), filepath.Join(pathOut, filepath.FromSlash(pathInArchive)), dst)
		})
		return nil
	})
	return err
}

// processDocument renders single markdown source. "src" is part of the
// source path (always including file name) relative to the original path.
// When actual file was specified it will be just base file name without a
// path. When looking inside archive or directory it will be relative path
// inside archive or directory (including base file name). "dst" is the
// destination directory where the rendered file should be written.
func (p *pipeline) processDocument(ctx context.Context, r io.Reader, src string, dst string) (rerr error) {
	env, log := p.env, p.log

	var outputName string

	log.Info("Rendering starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Rendering ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("rendering panic: %v", r)
		} else if rerr == nil {
			log.Info("Rendering completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read source (%s): %w", src, err)
	}
	if out, forced := decodeLegacy(data, env.CodePage); forced {
		log.Debug("Source converted from forced code page", zap.String("from", src))
		data = out
	}

	reportName := slug.Make(strings.TrimSuffix(src, filepath.Ext(src)))
	if reportName == "" {
		reportName = "stdin"
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("source/"+reportName+".md", data)
	}

	d := &document{src: src, source: string(data), owner: env.Owner}
	res, err := p.renderer.Render(ctx, d.source)
	if err != nil {
		return fmt.Errorf("unable to render (%s): %w", src, err)
	}
	d.result, d.rendered = res, time.Now()

	body := p.hydrate(ctx, res.HTML, env.Cfg.Render.IncludeDepth)
	d.title = library.Title(body, d.source)

	if missing := p.sheet.Missing(css.UsedClasses(body)); len(missing) > 0 {
		log.Warn("Classes used by document are not defined in stylesheet", zap.String("from", src), zap.Strings("classes", missing))
	}
	for _, o := range res.Generated {
		if o.Err != nil {
			log.Warn("Generation failed", zap.String("from", src), zap.String("id", o.ID), zap.String("kind", string(o.Kind)), zap.Error(o.Err))
		}
	}

	page := body
	if env.Standalone {
		if page, err = wrapPage(d.title, env.DefaultStyle, body); err != nil {
			return err
		}
	}

	if env.Rpt != nil {
		env.Rpt.StoreData("symbols/"+reportName+".txt", []byte(res.Symbols.Dump()))
		if len(res.Generated) > 0 {
			env.Rpt.StoreData("generated/"+reportName+".txt", []byte(markup.DumpOutcomes(res.Generated)))
		}
		env.Rpt.StoreData("result/"+reportName+outputExt, []byte(page))
	}

	if p.lib != nil {
		doc := &library.Document{Title: d.title, Content: d.source, HTML: body, Owner: d.owner}
		if err := p.lib.Save(ctx, doc); err != nil {
			return fmt.Errorf("unable to save document to library: %w", err)
		}
		log.Info("Document saved to library", zap.String("id", doc.ID), zap.String("title", doc.Title))
	}

	if src == stdinName {
		outputName = "STDOUT"
		_, err := io.WriteString(p.stdout, page)
		return err
	}

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(d, dst, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := os.WriteFile(outputName, []byte(page), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}
