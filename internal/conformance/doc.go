// Package conformance runs scenarios against client families and classifies
// each as passed, skipped, expected-failure-confirmed or failed.
//
// What a scenario does for a family is decided by the capability profile
// attached to the instance it runs on:
//   - supported: the scenario runs and must succeed
//   - hard-skip: the scenario is recorded as skipped and never runs
//   - soft-reject: the scenario runs and must be refused with an
//     UnsupportedCapabilityError; success is a failure
//
// # Running Against Real Fixtures
//
// The end-to-end suite starts ollama containers and is gated behind build
// tags, so it does not run with regular `go test`:
//
//	go test -tags=conformance,docker ./internal/conformance
//
// Set OLLAMA_BASE_URL to run the same suite against an existing server
// without starting containers.
package conformance
