// Package common holds process-wide helpers shared by the commands.
package common

// PackageName is used as the metrics namespace.
const PackageName = "vns_registrar"

// Version is overridden at build time with -ldflags "-X ...common.Version=...".
var Version = "dev"
