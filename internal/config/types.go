package config

// Budget defines the resource thresholds bounding a single session.
// A session stops and checkpoints once any threshold is reached.
type Budget struct {
	MaxFilesPerSession  int     `yaml:"max_files_per_session"`
	MaxLinesPerSession  int     `yaml:"max_lines_per_session"`
	MaxTestsPerSession  int     `yaml:"max_tests_per_session"`
	MaxTokenFraction    float64 `yaml:"max_token_fraction"`
	ContextWindowTokens int     `yaml:"context_window_tokens"`
}

// Commands holds the external collaborator commands. Each is run via the
// shell; the scheduler consumes only their exit status and, for the
// executor, a small JSON result document on stdout.
type Commands struct {
	Executor string `yaml:"executor"`
	Verify   string `yaml:"verify"`
}

// Config represents the .stride/config.yaml file.
type Config struct {
	Budget   Budget   `yaml:"budget"`
	Commands Commands `yaml:"commands"`
}
