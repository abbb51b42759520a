// Package pathx locates the credential store file across the deployment
// layouts the application ships in: a development checkout, a bundled
// runtime that extracts next to the executable, and installs that were
// relocated wholesale. Resolution is a pure function of the injected
// probe and environment, so it is deterministic and testable.
package pathx

import (
	"os"
	"path/filepath"
)

// EnvStorePath overrides the credential store location when set.
const EnvStorePath = "JJCIMS_DB"

// maxAncestors bounds the upward walk from the working directory.
const maxAncestors = 8

// Resolver holds the directories and probes that feed candidate
// resolution. Zero-value fields drop their candidates from the list.
type Resolver struct {
	// Explicit is an explicit path argument and wins outright when set.
	Explicit string

	// EnvVar names the override variable; empty means EnvStorePath.
	EnvVar string

	// BundleDir is the bundled-runtime extraction directory, when the
	// process is running from a bundle.
	BundleDir string

	// ExecDir is the directory holding the executable.
	ExecDir string

	// AppDir is the platform application-directory helper result, when
	// one is available.
	AppDir string

	// ModuleDir is the source checkout root, when running from one.
	ModuleDir string

	// WorkDir anchors the upward walk.
	WorkDir string

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Probe reports whether a path exists as a file. Defaults to an
	// os.Stat probe.
	Probe func(string) bool
}

// Default returns a Resolver wired to the live process environment.
func Default() Resolver {
	r := Resolver{}
	if exe, err := os.Executable(); err == nil {
		r.ExecDir = filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		r.WorkDir = wd
	}
	return r
}

func (r Resolver) lookupEnv(key string) (string, bool) {
	if r.LookupEnv != nil {
		return r.LookupEnv(key)
	}
	return os.LookupEnv(key)
}

func (r Resolver) probe(path string) bool {
	if r.Probe != nil {
		return r.Probe(path)
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Candidates returns the ordered candidate paths for filename.
func (r Resolver) Candidates(filename string) []string {
	var out []string

	if r.Explicit != "" {
		out = append(out, r.Explicit)
	}

	envVar := r.EnvVar
	if envVar == "" {
		envVar = EnvStorePath
	}
	if v, ok := r.lookupEnv(envVar); ok && v != "" {
		out = append(out, v)
	}

	if r.BundleDir != "" {
		out = append(out, filepath.Join(r.BundleDir, "database", filename))
	}
	if r.ExecDir != "" {
		out = append(out,
			filepath.Join(r.ExecDir, "database", filename),
			filepath.Join(r.ExecDir, filename),
		)
	}
	if r.AppDir != "" {
		out = append(out, filepath.Join(r.AppDir, filename))
	}
	if r.ModuleDir != "" {
		out = append(out,
			filepath.Join(r.ModuleDir, filename),
			filepath.Join(r.ModuleDir, "database", filename),
		)
	}

	if r.WorkDir != "" {
		// The working directory itself plus up to maxAncestors parents.
		dir := r.WorkDir
		for range maxAncestors + 1 {
			out = append(out,
				filepath.Join(dir, filename),
				filepath.Join(dir, "database", filename),
			)
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	return out
}

// Resolve returns the first existing candidate for filename. When none
// exists it returns the last candidate as a prospective creation target;
// callers that require an existing file must check separately.
func (r Resolver) Resolve(filename string) string {
	candidates := r.Candidates(filename)
	for _, c := range candidates {
		if r.probe(c) {
			return c
		}
	}
	if len(candidates) == 0 {
		return filename
	}
	return candidates[len(candidates)-1]
}
