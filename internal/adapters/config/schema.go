package config

// File represents the structure of the pms.yaml configuration file.
type File struct {
	Root    string   `yaml:"root"`
	State   string   `yaml:"state"`
	Cache   string   `yaml:"cache"`
	Sources string   `yaml:"sources"`
	Fetch   FetchDTO `yaml:"fetch"`
}

// FetchDTO holds the archive download knobs.
type FetchDTO struct {
	Retries int    `yaml:"retries"`
	Timeout string `yaml:"timeout"`
}
