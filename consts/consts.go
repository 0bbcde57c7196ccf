package consts

// Version is the current release version. Overridden with ldflags on release builds.
var Version = "dev"
