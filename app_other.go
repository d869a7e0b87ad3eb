//go:build !windows

package main

import (
	"errors"

	"PenTarget/internal/config"
	"PenTarget/internal/target"

	"github.com/sirupsen/logrus"
)

var errUnsupported = errors.New("pentarget needs Windows and a Wintab tablet driver")

func run(_ *config.Config, _ *target.Spec, _ *logrus.Logger) error {
	return errUnsupported
}
