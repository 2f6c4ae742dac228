// Package fixture provisions model-serving backends for the conformance
// battery and shares them across every test that needs the same model.
//
// A Registry hands out Handles keyed by (base image, model). It guarantees
// that the Provisioner runs at most once per key for the lifetime of the
// registry, however many goroutines ask for that key at the same time.
package fixture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Key identifies one provisioned fixture. It is the only cache key the
// registry uses.
type Key struct {
	BaseImage string
	Model     string
}

func (k Key) String() string {
	return k.BaseImage + "+" + k.Model
}

// Validate checks that both parts of the key are set.
func (k Key) Validate() error {
	if k.BaseImage == "" {
		return fmt.Errorf("fixture key: base image is required")
	}
	if k.Model == "" {
		return fmt.Errorf("fixture key: model is required")
	}
	return nil
}

var invalidTagChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// maxTagLen is the longest tag a container runtime accepts.
const maxTagLen = 128

// DerivedImage returns the local image name a provisioned key is committed
// as: tc-<repository>:<tag>-<model>-<hash>, e.g.
// tc-ollama/ollama:latest-llama3.1-346a6ec87412. The hash covers the whole
// key, so keys that sanitize or truncate to the same tag stay distinct.
func (k Key) DerivedImage() string {
	repo, tag := splitImage(k.BaseImage)
	sum := sha256.Sum256([]byte(k.String()))
	suffix := "-" + hex.EncodeToString(sum[:6])

	name := invalidTagChars.ReplaceAllString(tag+"-"+k.Model, "-")
	if len(name) > maxTagLen-len(suffix) {
		name = name[:maxTagLen-len(suffix)]
	}
	return "tc-" + repo + ":" + name + suffix
}

// splitImage splits an image reference into repository and tag. A digest
// reference keeps its digest out of the tag.
func splitImage(ref string) (repo, tag string) {
	if i := strings.Index(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	// A colon after the last slash separates the tag; earlier colons belong
	// to a registry port.
	slash := strings.LastIndex(ref, "/")
	if colon := strings.LastIndex(ref, ":"); colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, "latest"
}

// Source says how a handle's backend came to exist.
type Source string

const (
	// SourceBuilt means the model was installed and a derived image committed.
	SourceBuilt Source = "built"

	// SourceCached means an existing derived image was started.
	SourceCached Source = "cached"

	// SourceExternal means the endpoint was supplied from outside and nothing
	// was provisioned.
	SourceExternal Source = "external"
)

// Handle is a provisioned, ready-to-use fixture. Handles are immutable values;
// every caller asking for the same key receives an identical copy.
type Handle struct {
	Key      Key
	Endpoint string
	Ready    bool
	Source   Source
}

// Provisioner makes one fixture ready. Start is called at most once per key
// by a Registry. Stop releases what Start created.
type Provisioner interface {
	Start(ctx context.Context, key Key) (Handle, error)
	Stop(ctx context.Context, h Handle) error
}
