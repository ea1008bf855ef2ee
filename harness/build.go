package harness

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"
)

// BuildResult is the outcome of one component's build step.
type BuildResult struct {
	Component *Component
	Output    string
	Duration  time.Duration
	Err       error
}

// Failed reports whether the build step or its artifact check failed.
func (b BuildResult) Failed() bool { return b.Err != nil }

// Build runs the component's build command with sh in its directory and
// checks that an export's artifact exists afterwards. Components without a
// build command only get the artifact check.
func Build(ctx context.Context, c *Component, timeout time.Duration) BuildResult {
	start := time.Now()
	res := BuildResult{Component: c}

	if c.Build != "" {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, "sh", "-c", c.Build)
		cmd.Dir = c.Dir
		cmd.Stdout = &out
		cmd.Stderr = &out

		Logger().Debug("building component",
			zap.String("component", c.Name),
			zap.String("dir", c.Dir),
			zap.String("command", c.Build))

		err := cmd.Run()
		res.Output = out.String()
		if err != nil {
			res.Err = ewrap.Wrap(err, "build failed").
				WithMetadata("component", c.Name).
				WithMetadata("command", c.Build)
		}
	}

	if res.Err == nil && c.Role == RoleExport {
		if _, err := os.Stat(c.ArtifactPath()); err != nil {
			res.Err = ewrap.Wrap(err, "artifact missing").
				WithMetadata("component", c.Name).
				WithMetadata("artifact", c.ArtifactPath())
		}
	}

	res.Duration = time.Since(start)
	return res
}
