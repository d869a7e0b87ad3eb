package config

import (
	"sync"

	"PenTarget/internal/target"

	"github.com/sirupsen/logrus"
)

// Source supplies the desired target each time mapping is enabled. The
// configuration file is the user's editable input: a target read from it
// replaces the current one only when it differs from what the file held at
// the previous read, so a target given on the command line survives until
// the file is edited.
type Source struct {
	path string
	log  *logrus.Entry

	mu       sync.Mutex
	current  *target.Spec
	lastFile TargetConfig
}

// NewSource starts from the already loaded configuration. initial, when
// non-nil, overrides the target found in cfg.
func NewSource(cfg *Config, initial *target.Spec, log *logrus.Entry) *Source {
	s := &Source{path: cfg.Path, log: log, lastFile: cfg.Target}
	if initial != nil {
		spec := *initial
		s.current = &spec
	} else if spec, ok, err := cfg.Target.TargetSpec(); err != nil {
		log.WithError(err).Warn("ignoring configured target")
	} else if ok {
		s.current = &spec
	}
	return s
}

func (s *Source) Path() string { return s.path }

// Current returns the desired target without re-reading the file.
func (s *Source) Current() (target.Spec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return target.Spec{}, false
	}
	return *s.current, true
}

// DesiredTarget re-reads the file and environment. A read failure or an
// invalid target keeps the current target and is returned as the error.
func (s *Source) DesiredTarget() (target.Spec, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := newViper(s.path)
	err := readFile(v, s.path)
	if err == nil {
		tc := TargetConfig{Kind: v.GetString("target.kind"), Value: v.GetString("target.value")}
		if tc != s.lastFile {
			s.lastFile = tc
			var spec target.Spec
			var ok bool
			spec, ok, err = tc.TargetSpec()
			if ok {
				s.log.WithField("target", spec.String()).Debug("target edited")
				s.current = &spec
			}
		}
	}
	if s.current == nil {
		return target.Spec{}, false, err
	}
	return *s.current, true, err
}

// EnsureFile writes the file with the current target and defaults when it
// does not exist yet, and returns its path.
func (s *Source) EnsureFile() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fileExists(s.path) {
		return s.path, nil
	}
	v := newViper(s.path)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return s.path, err
	}
	c.Path = s.path
	if s.current != nil {
		c.Target = TargetConfig{Kind: s.current.Kind().String(), Value: s.current.Value()}
	}
	if err := Save(&c); err != nil {
		return s.path, err
	}
	s.lastFile = c.Target
	return s.path, nil
}
