// Package cmd implements the command-line interface of kRPC. It provides a
// hierarchical command structure for running the user service and calling it
// as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the user service with an optional /metrics endpoint
//   - user: Remote user operations (create, get, update, delete, list, perf)
//   - topics: Creates and lists the Kafka topics
//   - demo: Runs the end-to-end demo scenario
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See krpc -help for a list of all commands.
package cmd
