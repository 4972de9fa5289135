package build

import (
	"strings"

	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
)

// defaultPath is the only environment the first step sees. Nothing else
// leaks in from the invoking process.
const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Environment is the declared execution context carried forward from
// prior steps: accumulated variables and the current working directory.
// It is derived purely from the step list, so it is identical whether a
// prefix was executed or replayed from cache.
type Environment struct {
	vars    []string
	workdir string
}

// NewEnvironment returns the environment the first step executes in.
func NewEnvironment() Environment {
	return Environment{
		vars:    []string{defaultPath},
		workdir: "/",
	}
}

// Apply returns the environment in effect from the given step onward.
// ENV and WORKDIR steps advance it; every other kind leaves it as is.
func (e Environment) Apply(step manifest.Step) Environment {
	switch step.Kind() {
	case manifest.KindEnv:
		next := e
		for _, pair := range step.Args() {
			next.vars = setVar(next.vars, pair)
		}
		return next

	case manifest.KindWorkdir:
		next := e
		next.workdir = step.Args()[0]
		return next

	default:
		return e
	}
}

// Vars returns the KEY=VALUE pairs in declaration order.
func (e Environment) Vars() []string {
	copied := make([]string, len(e.vars))
	copy(copied, e.vars)
	return copied
}

// Workdir returns the current working directory inside the snapshot.
func (e Environment) Workdir() string {
	return e.workdir
}

// setVar adds or replaces a KEY=VALUE pair, preserving first-seen order
// for existing keys.
func setVar(vars []string, pair string) []string {
	key, _, _ := strings.Cut(pair, "=")

	next := make([]string, len(vars))
	copy(next, vars)

	for i, existing := range next {
		existingKey, _, _ := strings.Cut(existing, "=")
		if existingKey == key {
			next[i] = pair
			return next
		}
	}

	return append(next, pair)
}
