package types

// Version is the canonical project version.
// The CLI and the User-Agent header share this version.
const Version = "0.3.0"

// DefaultAPIVersion is the engine API version requested when none is configured.
const DefaultAPIVersion = "1.41"

// UserAgent is sent on every request.
const UserAgent = "docker-api/" + Version
