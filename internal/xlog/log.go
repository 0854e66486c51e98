// Package xlog centralizes logger construction for the node. Every
// component logs fielded records through a *logrus.Entry scoped to its
// component name.
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the base logger's verbosity, e.g. from a -verbose flag.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a logger scoped to the named component.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
