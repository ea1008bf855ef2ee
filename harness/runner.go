package harness

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/imports"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

// Runner drives one conformance run.
type Runner struct {
	cfg     Config
	engine  *wasmhost.Engine
	workDir string
	ownsDir bool
}

// NewRunner prepares a wasm engine and the working directory.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	r := &Runner{cfg: cfg, workDir: cfg.WorkDir}
	if r.workDir == "" {
		dir, err := os.MkdirTemp("", "ffi-conform-")
		if err != nil {
			return nil, ewrap.Wrap(err, "create work dir")
		}
		r.workDir, r.ownsDir = dir, true
	} else if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return nil, ewrap.Wrapf(err, "create work dir %s", r.workDir)
	}

	engine, err := wasmhost.NewEngine(ctx, &wasmhost.Config{MemoryLimitPages: cfg.MemoryLimitPages})
	if err != nil {
		r.removeWorkDir()
		return nil, ewrap.Wrap(err, "create wasm engine")
	}
	r.engine = engine
	return r, nil
}

// Close releases the engine and a temporary working directory.
func (r *Runner) Close(ctx context.Context) error {
	err := r.engine.Close(ctx)
	r.removeWorkDir()
	return err
}

func (r *Runner) removeWorkDir() {
	if r.ownsDir {
		os.RemoveAll(r.workDir)
	}
}

// Run discovers and builds components, then runs every selected pair.
// The returned error covers setup problems only; failing pairs and builds
// are part of the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	golden, err := LoadGolden(r.cfg.Golden)
	if err != nil {
		return nil, err
	}
	components, err := Discover(r.cfg.Roots)
	if err != nil {
		return nil, err
	}
	exps, err := BuiltinExports(r.engine, r.workDir)
	if err != nil {
		return nil, err
	}
	imps := BuiltinImports()

	report := &Report{Golden: golden, Started: time.Now()}
	for _, c := range components {
		target := c
		if r.cfg.SkipBuild {
			prebuilt := *c
			prebuilt.Build = ""
			target = &prebuilt
		}
		b := Build(ctx, target, r.cfg.BuildTimeout)
		b.Component = c
		report.Builds = append(report.Builds, b)
		if b.Failed() {
			Logger().Warn("component build failed",
				zap.String("component", c.Name),
				zap.Error(b.Err))
			continue
		}
		switch c.Role {
		case RoleExport:
			exps = append(exps, WasmExport(r.engine, c))
		case RoleImport:
			imps = append(imps, &Import{Name: c.Name, Component: c})
		}
	}

	exps = selected(exps, func(e *Export) string { return e.Name }, r.cfg.Exports)
	imps = selected(imps, func(i *Import) string { return i.Name }, r.cfg.Imports)

	Logger().Info("running conformance matrix",
		zap.Int("exports", len(exps)),
		zap.Int("imports", len(imps)),
		zap.Int("builds", len(report.Builds)))

pairs:
	for _, exp := range exps {
		for _, imp := range imps {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			res := r.RunPair(ctx, exp, imp, golden)
			report.Pairs = append(report.Pairs, res)
			if res.Status == StatusFail && r.cfg.FailFast {
				break pairs
			}
		}
	}
	report.Elapsed = time.Since(report.Started)
	return report, nil
}

// RunPair runs one importer against a fresh instance of one export.
func (r *Runner) RunPair(ctx context.Context, exp *Export, imp *Import, golden []string) PairResult {
	start := time.Now()
	res := PairResult{Export: exp.Name, Import: imp.Name}
	log := Logger().With(zap.String("export", exp.Name), zap.String("import", imp.Name))

	var out []string
	var err error
	if imp.Builtin() {
		out, err = r.runBuiltin(ctx, exp, imp, &res)
	} else {
		out, err = r.runExec(ctx, exp, imp, &res)
	}
	res.Duration = time.Since(start)
	if res.Status == StatusSkip {
		log.Debug("pair skipped", zap.String("reason", res.Reason))
		return res
	}

	res.Transcript = out
	res.Diff = Diff(golden, out, exp.Name+"/"+imp.Name)
	switch {
	case err != nil:
		res.Status = StatusFail
		res.Err = ewrap.Wrap(err, "pair failed").
			WithMetadata("export", exp.Name).
			WithMetadata("import", imp.Name)
	case res.Diff != "":
		res.Status = StatusFail
		res.Err = ewrap.New("transcript differs from golden").
			WithMetadata("export", exp.Name).
			WithMetadata("import", imp.Name)
	default:
		res.Status = StatusPass
	}
	log.Debug("pair finished", zap.String("status", string(res.Status)), zap.Duration("duration", res.Duration))
	return res
}

func (r *Runner) runBuiltin(ctx context.Context, exp *Export, imp *Import, res *PairResult) ([]string, error) {
	lib, err := exp.Open(ctx)
	if err != nil {
		return nil, ewrap.Wrap(err, "open export")
	}
	defer lib.Close(ctx)

	if !imports.Compatible(imp.Name, lib) {
		res.Status = StatusSkip
		res.Reason = fmt.Sprintf("export lacks %s", strings.Join(imports.Requires(imp.Name), ", "))
		return nil, nil
	}

	importer, err := imports.New(imp.Name, imports.WithAudit(r.cfg.Audit))
	if err != nil {
		return nil, err
	}

	base, liveErr := lib.Live(ctx)
	var buf bytes.Buffer
	runErr := importer.Run(ctx, lib, &buf)
	out := SplitLines(buf.String())
	if runErr != nil {
		return out, runErr
	}

	if liveErr == nil {
		if n, err := lib.Live(ctx); err != nil {
			return out, err
		} else if n != base {
			return out, errors.ContractViolation(errors.PhaseRelease,
				fmt.Sprintf("export holds %d allocations after the run, %d before", n, base))
		}
	} else if !stderrors.Is(liveErr, &errors.Error{Phase: errors.PhaseContract, Kind: errors.KindUnsupported}) {
		return out, liveErr
	}
	if n := lib.Space().Trampolines().Live(); n != 0 {
		return out, errors.ContractViolation(errors.PhaseRelease,
			fmt.Sprintf("%d host closures never destroyed", n))
	}
	return out, nil
}

func (r *Runner) runExec(ctx context.Context, exp *Export, imp *Import, res *PairResult) ([]string, error) {
	if exp.File == "" {
		res.Status = StatusSkip
		res.Reason = "export has no artifact for external importers"
		return nil, nil
	}
	library, err := filepath.Abs(exp.File)
	if err != nil {
		return nil, ewrap.Wrap(err, "resolve library path")
	}

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}
	args := imp.Component.Args(library)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = imp.Component.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	out := SplitLines(stdout.String())
	if err != nil {
		return out, ewrap.Wrap(err, "importer exited with an error").
			WithMetadata("command", strings.Join(args, " ")).
			WithMetadata("stderr", strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

