// Package metrics counts login handshakes: outcomes, state transitions and
// durations. The CLI has no scrape endpoint, so a Recorder can dump its
// registry in the node_exporter textfile format instead.
package metrics
