// Package manifest provides the step model and parser for build manifests.
package manifest

// Kind classifies a manifest instruction. The enumeration is closed:
// parsing any other instruction word fails.
type Kind int

const (
	// KindBaseImage declares the base image the build starts from.
	KindBaseImage Kind = iota
	// KindRun executes a shell instruction in the build context.
	KindRun
	// KindEnv sets an environment variable for subsequent steps.
	KindEnv
	// KindWorkdir sets the working directory for subsequent steps.
	KindWorkdir
)

// String returns the instruction word for the kind.
func (k Kind) String() string {
	switch k {
	case KindBaseImage:
		return "FROM"
	case KindRun:
		return "RUN"
	case KindEnv:
		return "ENV"
	case KindWorkdir:
		return "WORKDIR"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps an instruction word to its Kind.
// Returns false for words outside the closed enumeration.
func ParseKind(word string) (Kind, bool) {
	switch word {
	case "FROM":
		return KindBaseImage, true
	case "RUN":
		return KindRun, true
	case "ENV":
		return KindEnv, true
	case "WORKDIR":
		return KindWorkdir, true
	default:
		return 0, false
	}
}

// Step is one instruction of a parsed manifest.
// It is an immutable value object: ordinal position, kind, canonical
// instruction text, and parsed arguments.
type Step struct {
	ordinal int
	kind    Kind
	text    string
	args    []string
}

// NewStep creates a new Step.
func NewStep(ordinal int, kind Kind, text string, args []string) Step {
	copied := make([]string, len(args))
	copy(copied, args)
	return Step{
		ordinal: ordinal,
		kind:    kind,
		text:    text,
		args:    copied,
	}
}

// Ordinal returns the 1-based position of the step in its manifest.
func (s Step) Ordinal() int {
	return s.ordinal
}

// Kind returns the instruction kind.
func (s Step) Kind() Kind {
	return s.kind
}

// Text returns the canonical instruction text, including the keyword.
func (s Step) Text() string {
	return s.text
}

// Args returns a copy of the parsed arguments.
// For KindRun the single argument is the shell script, for KindEnv the
// arguments are KEY=VALUE pairs, for KindWorkdir the single argument is
// the directory path.
func (s Step) Args() []string {
	copied := make([]string, len(s.args))
	copy(copied, s.args)
	return copied
}
