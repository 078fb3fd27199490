package version

// Version is the current version of the tickgraph engine.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/tradelayout/tickgraph/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "v1.0.0"

// SchemaVersion is the strategy definition schema the engine understands.
// Strategy files declare the schema they were written against and are
// rejected at load time when major or minor differ.
const SchemaVersion = "1.0.0"

// GetVersion returns the current version of the engine.
func GetVersion() string {
	return Version
}
