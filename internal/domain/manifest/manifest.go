package manifest

// Manifest is an ordered list of provisioning steps rooted at a
// declared base image. Immutable once parsed.
type Manifest struct {
	baseImage string
	steps     []Step
}

// NewManifest creates a Manifest from a base image and steps.
func NewManifest(baseImage string, steps []Step) *Manifest {
	copied := make([]Step, len(steps))
	copy(copied, steps)
	return &Manifest{
		baseImage: baseImage,
		steps:     copied,
	}
}

// BaseImage returns the declared base image identifier.
func (m *Manifest) BaseImage() string {
	return m.baseImage
}

// Steps returns a copy of the ordered step list.
func (m *Manifest) Steps() []Step {
	copied := make([]Step, len(m.steps))
	copy(copied, m.steps)
	return copied
}

// Len returns the number of steps.
func (m *Manifest) Len() int {
	return len(m.steps)
}
