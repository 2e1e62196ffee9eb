package media

// Role tells which part of the metadata record an artifact came from.
// Roles are diagnostic only; processing treats every artifact alike.
type Role string

const (
	RolePrimary    Role = "primary"
	RoleOriginal   Role = "original"
	RoleSize       Role = "size"
	RoleSizeSource Role = "size-source"
	RoleSource     Role = "source"
)

// Artifact is one relative path in an ArtifactSet.
type Artifact struct {
	Path string
	Role Role
	// Size names the owning size entry for RoleSize and RoleSizeSource.
	Size string
}

// ArtifactSet is the ordered, duplicate-free list of expected artifacts.
type ArtifactSet []Artifact

// Paths returns the relative paths in order.
func (s ArtifactSet) Paths() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.Path
	}
	return out
}
