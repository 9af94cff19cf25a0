// Package logging builds the single process-wide logger every other package
// is handed at startup, mirroring the teacher's construction of its
// top-level log and accessLogger in server.Serve.
package logging

import (
	"fmt"
	"path"

	logx "github.com/ije/gox/log"

	"github.com/esbuild-dev/bundlerd/internal/config"
)

// New builds a *logx.Logger from config: a file-backed buffered logger when
// LogDir is set, stderr otherwise.
func New(c *config.Config) (*logx.Logger, error) {
	if c.LogDir == "" {
		l := &logx.Logger{}
		l.SetLevelByName(c.LogLevel)
		return l, nil
	}

	l, err := logx.New(fmt.Sprintf("file:%s?buffer=32k", path.Join(c.LogDir, "bundlerd.log")))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	l.SetLevelByName(c.LogLevel)
	return l, nil
}
