package logging

// LoggingConfig selects level, encoding and destination of the zap logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   string `yaml:"level" json:"level"`   // debug|info|warn|error
	Format  string `yaml:"format" json:"format"` // json|console
	Output  string `yaml:"output" json:"output"` // stdout|stderr|file|<path>
	File    *File  `yaml:"file,omitempty" json:"file,omitempty"`
}

// File configures the lumberjack writer used when Output is "file".
type File struct {
	Dir        string `yaml:"dir" json:"dir"`
	Filename   string `yaml:"filename" json:"filename"` // without .log
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}
