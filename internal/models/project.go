package models

// Project is the optional per-project manifest loaded from
// .mend/project.yaml. Zero values defer to the global config.
type Project struct {
	Name        string `yaml:"name"`
	TestCommand string `yaml:"test_command"`
	TestDir     string `yaml:"test_dir"`
	EntryFile   string `yaml:"entry_file"`
	Model       string `yaml:"model"`
	MaxTurns    int    `yaml:"max_turns"`
}
