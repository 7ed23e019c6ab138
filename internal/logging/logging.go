// Package logging sets up structured, rotated logging shared by every
// subsystem, following the bootstrap pattern the ecommerce teacher repo
// uses for its own logrus logger.
package logging

import (
	"fmt"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing JSON lines to logsDir, rotated daily
// and retained for 14 days. When logsDir is empty the same JSON lines go
// to stderr instead; there is no separate text output on stderr.
func New(logsDir string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	logger.SetLevel(logrus.InfoLevel)

	if logsDir == "" {
		return logger, nil
	}

	writer, err := rotatelogs.New(
		filepath.Join(logsDir, "cart.%Y%m%d.log"),
		rotatelogs.WithMaxAge(14*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("logging: rotatelogs: %w", err)
	}
	logger.SetOutput(writer)
	return logger, nil
}

// For returns a per-subsystem logger carrying a "component" field, the
// convention every C3–C8 subsystem uses to tag its log lines.
func For(base *logrus.Logger, component string) *logrus.Entry {
	return base.WithField("component", component)
}
