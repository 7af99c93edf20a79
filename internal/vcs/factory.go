package vcs

// NewCommandBuilder returns a CommandBuilder for the given repository type.
// Defaults to plain Mercurial if repoType is empty or unrecognized.
func NewCommandBuilder(repoType, binary string, env map[string]string) CommandBuilder {
	if binary == "" {
		binary = DefaultBinary
	}
	hg := &HgCommandBuilder{Binary: binary, Env: env}

	switch repoType {
	case "svn":
		return &SubversionCommandBuilder{HgCommandBuilder: hg}
	default:
		return hg
	}
}
