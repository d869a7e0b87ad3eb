package main

import (
	"errors"
	"fmt"
	"os"

	"PenTarget/internal/config"
	"PenTarget/internal/target"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const version = "dev"

type flags struct {
	process     string
	class       string
	title       string
	configPath  string
	verbose     int
	quiet       bool
	keepAspect  bool
	unfocusFull bool
}

var errManyTargets = errors.New("only one of --process, --win-class and --title-contains may be given")

var flagAliases = map[string]string{
	"proc":        "process",
	"class":       "win-class",
	"title":       "title-contains",
	"keep-aspect": "preserve-aspect",
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "pentarget",
		Short: "Keep a pen tablet mapped onto one application window",
		Long: `pentarget follows a target window and maps the tablet's active area onto it,
re-mapping whenever the window moves, resizes or comes back to the foreground.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log.Level, f.verbose, f.quiet)
			initial, err := f.target()
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"config":  cfg.Path,
				"version": version,
			}).Info("starting pentarget")
			return run(cfg, initial, log)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if to, ok := flagAliases[name]; ok {
			name = to
		}
		return pflag.NormalizedName(name)
	})
	fs.StringVar(&f.process, "process", "", "target the window of this executable (e.g. krita.exe)")
	fs.StringVar(&f.class, "win-class", "", "target the window with this exact class name")
	fs.StringVar(&f.title, "title-contains", "", "target the window whose title contains this text")
	fs.BoolVar(&f.keepAspect, "preserve-aspect", false, "crop the tablet area to the window's aspect ratio")
	fs.BoolVar(&f.unfocusFull, "full-when-unfocused", false, "use the whole screen while another window is in the foreground")
	fs.StringVar(&f.configPath, "config", "", "configuration file (default %APPDATA%\\PenTarget\\config.toml)")
	fs.CountVarP(&f.verbose, "verbose", "v", "more logging (-v debug, -vv trace)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log warnings and errors")
	return cmd
}

// target returns the target given on the command line, if any.
func (f flags) target() (*target.Spec, error) {
	var (
		spec  target.Spec
		err   error
		count int
	)
	for _, c := range []struct {
		kind  target.Kind
		value string
	}{
		{target.ProcessName, f.process},
		{target.WindowClass, f.class},
		{target.TitleSubstring, f.title},
	} {
		if c.value == "" {
			continue
		}
		count++
		spec, err = target.New(c.kind, c.value)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", c.kind, err)
		}
	}
	switch count {
	case 0:
		return nil, nil
	case 1:
		return &spec, nil
	}
	return nil, errManyTargets
}

func newLogger(level string, verbose int, quiet bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	switch {
	case quiet:
		lvl = logrus.WarnLevel
	case verbose >= 2:
		lvl = logrus.TraceLevel
	case verbose == 1:
		lvl = logrus.DebugLevel
	}
	l.SetLevel(lvl)
	if err != nil && level != "" {
		l.WithField("level", level).Warn("unknown log level, using info")
	}
	return l
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
