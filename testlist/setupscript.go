package testlist

// SetupScript is a named command run, serially, before tests matching its
// Filter predicate (spec.md §3, §4.6).
type SetupScript struct {
	Name    string
	Command []string
	Capture CapturePolicy

	Slow SlowTimeout
	Leak LeakTimeout

	// Filter selects which runnable test instances this script's published
	// environment variables apply to. A nil Filter matches every instance.
	Filter func(TestInstance) bool

	// EnvFilePath is not read or set by the executor: for each run it
	// creates its own temporary file, passes its path in NEXTEST_ENV, and
	// parses it afterwards for `KEY=VALUE` lines (spec.md §6 setup-script
	// env-publish protocol).
	EnvFilePath string
}

// Matches reports whether this script's filter selects inst.
func (s SetupScript) Matches(inst TestInstance) bool {
	if s.Filter == nil {
		return true
	}
	return s.Filter(inst)
}

// EnvVars is the parsed result of a setup script's published-variables
// file, merged into the environment of every matching downstream test.
type EnvVars map[string]string
