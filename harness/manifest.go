package harness

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"
)

// ManifestName marks a directory as a component.
const ManifestName = "component.toml"

// Role says which side of the contract a component implements.
type Role string

const (
	RoleExport Role = "export"
	RoleImport Role = "import"
)

// Kind says how a component is run.
type Kind string

const (
	// KindWasm is an export whose artifact is a wasm32 module.
	KindWasm Kind = "wasm"
	// KindExec is an import run as a program against an export artifact.
	KindExec Kind = "exec"
)

// Placeholders expanded in exec command arguments.
const (
	PlaceholderLibrary = "{library}"
	PlaceholderDir     = "{dir}"
)

// Component is one discovered implementation.
type Component struct {
	Name     string
	Role     Role
	Kind     Kind
	Build    string
	Artifact string
	Command  []string
	// Dir is the directory holding the manifest.
	Dir string
}

// ArtifactPath returns the artifact location resolved against Dir.
func (c *Component) ArtifactPath() string {
	if c.Artifact == "" || filepath.IsAbs(c.Artifact) {
		return c.Artifact
	}
	return filepath.Join(c.Dir, c.Artifact)
}

// Args expands placeholders of the command template.
func (c *Component) Args(library string) []string {
	r := strings.NewReplacer(PlaceholderLibrary, library, PlaceholderDir, c.Dir)
	args := make([]string, len(c.Command))
	for i, a := range c.Command {
		args[i] = r.Replace(a)
	}
	return args
}

type manifestFile struct {
	Name     string   `toml:"name"`
	Role     string   `toml:"role"`
	Kind     string   `toml:"kind"`
	Build    string   `toml:"build"`
	Artifact string   `toml:"artifact"`
	Command  []string `toml:"command"`
}

// LoadManifest reads the component.toml at path.
func LoadManifest(path string) (*Component, error) {
	var raw manifestFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, ewrap.Wrapf(err, "load manifest %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, ewrap.New("unknown manifest keys").
			WithMetadata("manifest", path).
			WithMetadata("keys", undecoded)
	}

	// builds and exec importers run with Dir as working directory, so
	// {dir} and the artifact must not depend on the harness's own cwd
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, ewrap.Wrapf(err, "resolve component dir of %s", path)
	}
	c := &Component{
		Name:     strings.TrimSpace(raw.Name),
		Role:     Role(strings.TrimSpace(raw.Role)),
		Build:    strings.TrimSpace(raw.Build),
		Artifact: strings.TrimSpace(raw.Artifact),
		Command:  raw.Command,
		Dir:      dir,
	}
	if !meta.IsDefined("name") || c.Name == "" {
		c.Name = filepath.Base(dir)
	}
	if meta.IsDefined("kind") {
		c.Kind = Kind(strings.TrimSpace(raw.Kind))
	} else if c.Role == RoleExport {
		c.Kind = KindWasm
	} else {
		c.Kind = KindExec
	}

	if err := c.validate(); err != nil {
		return nil, ewrap.Wrap(err, "invalid manifest").WithMetadata("manifest", path)
	}
	return c, nil
}

func (c *Component) validate() error {
	switch {
	case c.Role != RoleExport && c.Role != RoleImport:
		return ewrap.Newf("role must be %q or %q, got %q", RoleExport, RoleImport, c.Role)
	case c.Role == RoleExport && c.Kind != KindWasm:
		return ewrap.Newf("export components must be of kind %q", KindWasm)
	case c.Role == RoleImport && c.Kind != KindExec:
		return ewrap.Newf("import components must be of kind %q", KindExec)
	case c.Role == RoleExport && c.Artifact == "":
		return ewrap.New("export components need an artifact")
	case c.Role == RoleImport && len(c.Command) == 0:
		return ewrap.New("import components need a command")
	case c.Role == RoleImport && !slices.ContainsFunc(c.Command, func(a string) bool {
		return strings.Contains(a, PlaceholderLibrary)
	}):
		return ewrap.Newf("import command must reference %s", PlaceholderLibrary)
	}
	return nil
}

// Discover walks roots for manifests. Missing roots are skipped. Components
// are returned sorted by role, then name; duplicate names within a role are
// an error.
func Discover(roots []string) ([]*Component, error) {
	var found []*Component
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					Logger().Debug("component root missing", zap.String("root", root))
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() || d.Name() != ManifestName {
				return nil
			}
			c, err := LoadManifest(path)
			if err != nil {
				return err
			}
			found = append(found, c)
			return nil
		})
		if err != nil {
			return nil, ewrap.Wrapf(err, "discover components under %s", root)
		}
	}

	slices.SortFunc(found, func(a, b *Component) int {
		if a.Role != b.Role {
			return strings.Compare(string(a.Role), string(b.Role))
		}
		return strings.Compare(a.Name, b.Name)
	})
	for i := 1; i < len(found); i++ {
		if found[i].Role == found[i-1].Role && found[i].Name == found[i-1].Name {
			return nil, ewrap.New("duplicate component name").
				WithMetadata("name", found[i].Name).
				WithMetadata("dirs", []string{found[i-1].Dir, found[i].Dir})
		}
	}
	return found, nil
}
