// Package cli implements the command-line interface for umami-report.
//
// The cli package provides the Cobra root command. It layers command-line
// flags over the file and environment configuration, builds the report
// container and prints a run summary (text or JSON) once the digest has
// been delivered.
package cli
