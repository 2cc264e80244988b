package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matzehuels/wkimage/pkg/converter"
	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/render"
	"github.com/matzehuels/wkimage/pkg/settings"
)

// stdinArg selects HTML read from standard input.
const stdinArg = "-"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file path; stdout when empty
	noCache  bool   // skip the render cache entirely
	refresh  bool   // re-render and overwrite the cached image
	force    bool   // allow image bytes on a terminal
	progress bool   // draw the phase/progress view
}

// imageFlags are the image settings exposed as flags. Only flags the user
// set override the configuration file.
type imageFlags struct {
	format      string
	width       int
	height      int
	quality     int
	transparent bool
	quiet       bool
}

func (f *imageFlags) register(cmd *cobra.Command) {
	defaults := settings.Default()
	flags := cmd.Flags()
	flags.StringVarP(&f.format, "format", "f", "", "image format: png, jpg, bmp, svg (default from output extension, else png)")
	flags.IntVar(&f.width, "width", defaults.ScreenWidth, "screen width in pixels")
	flags.IntVar(&f.height, "height", defaults.ScreenHeight, "screen height in pixels (0 fits the page)")
	flags.IntVar(&f.quality, "quality", defaults.Quality, "compression quality 0-100")
	flags.BoolVar(&f.transparent, "transparent", false, "keep the page background transparent")
	flags.BoolVar(&f.quiet, "quiet", false, "silence the engine and status output")
}

func (f *imageFlags) apply(cmd *cobra.Command, img *settings.Image) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		img.Fmt = normalizeFormat(f.format)
	}
	if flags.Changed("width") {
		img.ScreenWidth = f.width
	}
	if flags.Changed("height") {
		img.ScreenHeight = f.height
	}
	if flags.Changed("quality") {
		img.Quality = f.quality
	}
	if flags.Changed("transparent") {
		img.Transparent = f.transparent
	}
	if flags.Changed("quiet") {
		img.Quiet = f.quiet
	}
}

// effectiveSettings loads the configuration and applies the image flags.
func (c *CLI) effectiveSettings(cmd *cobra.Command, f *imageFlags) (*settings.Image, error) {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	img := cfg.Image.Clone()
	f.apply(cmd, img)
	return img, nil
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts
	var img imageFlags

	cmd := &cobra.Command{
		Use:   "render [url|file|-]",
		Short: "Render a page to an image",
		Long: `Render a URL, a local HTML file, or HTML read from stdin ("-") to an image.

Without --output the image is written to stdout.`,
		Example: `  wkimage render https://example.com -o example.png
  wkimage render page.html --format jpg --quality 80 > page.jpg
  echo '<h1>hi</h1>' | wkimage render - -o hi.png --width 400`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], opts, &img)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	flags.BoolVar(&opts.refresh, "refresh", false, "ignore cached images and render again")
	flags.BoolVar(&opts.force, "force", false, "write image data even if stdout is a terminal")
	flags.BoolVar(&opts.progress, "progress", false, "show conversion phases and progress")
	img.register(cmd)
	registerRenderCompletions(cmd)

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts renderOpts, f *imageFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	img := cfg.Image.Clone()
	f.apply(cmd, img)
	if opts.output != "" && !cmd.Flags().Changed("format") {
		if format := formatFromPath(opts.output); format != "" {
			img.Fmt = format
		}
	}

	stdout := cmd.OutOrStdout()
	if opts.output == "" && !opts.force && isTerminal(stdout) {
		return errors.New(errors.ErrCodeInvalidInput, "refusing to write image data to a terminal (use --output or --force)")
	}

	req := render.Request{Settings: img, Refresh: opts.refresh}
	label := input
	if input == stdinArg {
		html, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		req.HTML = string(html)
		label = "stdin"
	} else {
		req.Input = input
	}

	rt, err := c.runtimeFor(cfg)
	if err != nil {
		return err
	}
	store := c.newCache(ctx, cfg, opts.noCache)
	defer store.Close()

	runner := render.NewRunner(rt, store, nil, c.Logger)
	if cfg.Cache.TTL > 0 {
		runner.TTL = cfg.Cache.TTL
	}

	prog := newProgress(c.Logger)
	fb := newFeedback(withLogger(ctx, c.Logger), label, feedbackMode(opts, img))
	fb.logPhases = opts.progress
	req.Observer = fb
	fb.start()
	res, err := runner.Render(ctx, req)
	fb.stop(err)
	if err != nil {
		return err
	}
	prog.done("Rendered " + label)

	if opts.output != "" {
		if err := writeOutput(opts.output, res.Data); err != nil {
			return err
		}
	} else if _, err := stdout.Write(res.Data); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	if !img.Quiet {
		for _, w := range fb.warnings() {
			printWarning("%s", w)
		}
		if opts.output != "" {
			printSuccess("Rendered %s", label)
			printFile(opts.output)
		}
		printRenderStats(res.Info, len(res.Data), res.CacheHit, res.Duration)
	}
	return nil
}

func writeOutput(path string, data []byte) error {
	if err := errors.ValidateOutputPath(path); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// formatFromPath maps an output file extension to an image format.
func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "jpeg":
		return settings.FormatJPG
	case settings.FormatPNG, settings.FormatJPG, settings.FormatBMP, settings.FormatSVG:
		return ext
	}
	return ""
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpeg" {
		return settings.FormatJPG
	}
	return format
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// Conversion Feedback
// =============================================================================

type displayMode int

const (
	displayLog displayMode = iota
	displaySpinner
	displayProgress
)

func feedbackMode(opts renderOpts, img *settings.Image) displayMode {
	if img.Quiet || !isTerminal(statusOut) {
		return displayLog
	}
	if opts.progress {
		return displayProgress
	}
	return displaySpinner
}

// feedback observes one conversion and reports it according to mode. Its
// methods run on the engine thread.
type feedback struct {
	logger  *log.Logger
	label   string
	mode    displayMode
	spinner *Spinner
	program *tea.Program
	ui      converter.Observer
	exited  chan struct{}

	// logPhases logs phase changes at info level instead of debug.
	logPhases bool

	mu    sync.Mutex
	warns []string
}

func newFeedback(ctx context.Context, label string, mode displayMode) *feedback {
	return &feedback{
		logger: loggerFromContext(ctx),
		label:  label,
		mode:   mode,
	}
}

func (f *feedback) start() {
	switch f.mode {
	case displaySpinner:
		f.spinner = newSpinner(statusOut, "Rendering "+f.label)
		f.spinner.Start()
	case displayProgress:
		f.program = tea.NewProgram(NewProgressModel("Rendering "+f.label),
			tea.WithOutput(statusOut),
			tea.WithInput(nil),
		)
		f.ui = progressObserver(f.program)
		f.exited = make(chan struct{})
		go func() {
			defer close(f.exited)
			if _, err := f.program.Run(); err != nil {
				f.logger.Debug("progress view stopped", "error", err)
			}
		}()
	}
}

func (f *feedback) stop(err error) {
	switch {
	case f.spinner != nil:
		if err != nil {
			f.spinner.StopWithError("Render failed")
		} else {
			f.spinner.Stop()
		}
	case f.program != nil:
		f.program.Send(doneMsg{err: err})
		<-f.exited
	}
}

func (f *feedback) warnings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.warns...)
}

func (f *feedback) OnBegin(n int) {
	f.logger.Debug("conversion started", "input", f.label, "phases", n)
	if f.ui != nil {
		f.ui.OnBegin(n)
	}
}

func (f *feedback) OnPhaseChanged(phase int, desc string) {
	if f.logPhases && f.mode == displayLog {
		f.logger.Info("phase", "n", phase, "desc", desc)
	} else {
		f.logger.Debug("phase", "n", phase, "desc", desc)
	}
	if f.spinner != nil {
		f.spinner.SetMessage(desc)
	}
	if f.ui != nil {
		f.ui.OnPhaseChanged(phase, desc)
	}
}

func (f *feedback) OnProgressChanged(progress int, desc string) {
	if f.ui != nil {
		f.ui.OnProgressChanged(progress, desc)
	}
}

func (f *feedback) OnFinished(success bool) {
	f.logger.Debug("conversion finished", "input", f.label, "success", success)
}

func (f *feedback) OnError(msg string) {
	f.logger.Debug("engine error", "msg", msg)
}

func (f *feedback) OnWarning(msg string) {
	f.mu.Lock()
	f.warns = append(f.warns, msg)
	f.mu.Unlock()
	if f.ui != nil {
		f.ui.OnWarning(msg)
	}
}
