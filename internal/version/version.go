package version

// Version is the current version of the p2pchat client.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/nikelwish/p2p-service/internal/version.Version=v1.0.0'"
var Version = "dev"
