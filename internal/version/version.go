package version

// Version is the released semantic version. Release builds override it with
// -ldflags "-X github.com/nathanaelphilip/gh-commit-ai/internal/version.Version=x.y.z".
var Version = "1.0.0"

// Name is the binary name; gh exposes it as `gh commit-ai`.
const Name = "gh-commit-ai"

// Tagline is the first line of the help output.
const Tagline = Name + " - AI-powered git commit message generator"
