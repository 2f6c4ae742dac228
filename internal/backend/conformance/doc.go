// Package conformance provides runtime-agnostic contract tests that verify
// container runtimes correctly implement the backend.Backend interface.
//
// # Running Contract Tests
//
// Contract tests are gated behind build tags and do not run with regular `go test`.
// They start real containers from a small web-server image.
//
// Run the docker runtime contract tests:
//
//	go test -tags=conformance,docker ./internal/backend/conformance
//
// # Adding a New Runtime
//
//  1. Create a test file (e.g., podman_test.go) with appropriate build tags:
//
//     //go:build conformance && podman
//
//  2. Get the registered runtime and run the suite:
//
//     func TestPodmanConformance(t *testing.T) {
//     be, _ := backend.Get(backend.BackendConfig{Type: "podman"})
//     suite := &ConformanceSuite{Backend: be}
//     suite.Run(t)
//     }
//
// # Test Categories
//
// The suite tests:
//   - Lifecycle: Run, Status, Endpoint, Exec, List and Destroy
//   - Environment: values reach the container unmodified
//   - SetupCommands: model pulls then setup commands, in order, stopping at the first failure
//   - Images: Commit, ImageExists and RemoveImage
package conformance
