// Command corral is the CLI for the corrald daemon: it triggers ingestion
// runs, polls their progress, and inspects the catalog over the daemon's
// HTTP API.
package main
