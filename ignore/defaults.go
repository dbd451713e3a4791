package ignore

// DefaultMaxFileSizeBytes is the largest file the index accepts unless configured otherwise.
const DefaultMaxFileSizeBytes = 5 * 1024 * 1024

// DefaultConfigFileName is the per-project file holding the persisted ignore selection.
const DefaultConfigFileName = ".codesync-ignore.json"

// DefaultIgnoreDirs contains directory names that are never worth serving:
// dependency trees, build output, caches and tool state.
var DefaultIgnoreDirs = []string{
	// Version control and editors
	".git",
	".github",
	".vscode",
	".idea",

	// Dependencies
	"node_modules",
	".pub-cache",
	".dart_tool",
	".fvm",
	"venv",
	"env",

	// Build output
	"dist",
	"build",
	"out",
	"target",
	"bin",
	"obj",
	"generated",
	"captures",
	"android/app/build",
	"ios/build",
	".gradle",

	// Framework caches
	".next",
	".nuxt",
	"__pycache__",
	"coverage",
	".fetch-client",

	// Logs and own state
	"logs",
	".codesync",
}

// DefaultPatterns are glob patterns that are always active, even when a
// persisted selection does not list them.
var DefaultPatterns = []string{
	"*~",
	"*.tmp",
}

// DefaultConfig returns the configuration used when no selection has been persisted.
func DefaultConfig() Config {
	cfg := Config{
		IgnoreDirs: append([]string(nil), DefaultIgnoreDirs...),
	}
	return cfg.WithDefaultPatterns()
}
