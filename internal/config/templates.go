package config

// ProjectConfigTemplate is the default template for .chatconform.yaml.
// It includes commented examples for all configuration options.
const ProjectConfigTemplate = `# chatconform project configuration
# Location: .chatconform.yaml (searched upward from the working directory)

# Schema version (required)
version: 1

# Container runtime used to start fixtures: testcontainers talks to the
# engine API directly, docker drives the docker CLI
runtime: testcontainers

# CLI binary for the docker runtime (defaults to docker on PATH)
# binary: /usr/local/bin/docker

# Host the published fixture ports are reached on
# host: localhost

# Image fixtures are derived from. Derived images are tagged
# tc-<repository>:<tag>-<model>-<hash> and reused by later runs.
base_image: ollama/ollama:latest

# Model used when a test does not name one
default_model: llama3.1

# Models behind the default fixtures. tools and vision are
# provisioned when a run starts; custom is provisioned on demand.
fixtures:
  tools: llama3.1
  vision: llama3.2-vision
  custom: llama3.2

# Path polled until it answers 200 before a fixture is handed out
# readiness_path: /

# Leave containers running after the run (for debugging)
# keep_containers: false

timeouts:
  # Starting a container and installing a model
  provisioning: 30m
  # One request to a fixture
  request: 180s

# Environment set in every fixture container
# env:
#   OLLAMA_KEEP_ALIVE: "-1"
#   # Reference host environment variable
#   OLLAMA_ORIGINS: ${OLLAMA_ORIGINS:-*}
#   # Reference file contents (entire file becomes value)
#   HF_TOKEN:
#     from_file: ~/.secrets/hf-token

# Shell commands run in the container after the model pull and
# before the derived image is committed
# setup:
#   - ollama show llama3.1

# State database (defaults to ~/.local/share/chatconform/state.db)
# state_db: ~/.local/share/chatconform/state.db

# Per-family capability profile overrides
# profiles:
#   openai:
#     capabilities:
#       json_schema:
#         supported: true
#       tool_choice_required:
#         supported: false
#         tier: soft_reject
#     assertions:
#       finish_reason: true
`

// ProjectConfigMinimalTemplate is a minimal template without comments.
const ProjectConfigMinimalTemplate = `version: 1
runtime: testcontainers
base_image: ollama/ollama:latest
default_model: llama3.1
`
