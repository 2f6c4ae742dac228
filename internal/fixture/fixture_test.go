package fixture

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDerivedImage(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{Key{"ollama/ollama:latest", "llama3.1"}, "tc-ollama/ollama:latest-llama3.1-346a6ec87412"},
		{Key{"ollama/ollama:latest", "llama3.2-vision"}, "tc-ollama/ollama:latest-llama3.2-vision-c156ceaddf6d"},
		{Key{"ollama/ollama", "llama3.2"}, "tc-ollama/ollama:latest-llama3.2-5e8e5f5ec590"},
		{Key{"ollama/ollama:0.5.7", "qwen2:0.5b"}, "tc-ollama/ollama:0.5.7-qwen2-0.5b-7fd664fa4c2b"},
		{Key{"registry.local:5000/ollama:v1", "phi3"}, "tc-registry.local:5000/ollama:v1-phi3-cf6e9e4510d5"},
		{Key{"ollama/ollama@sha256:abcd", "phi3"}, "tc-ollama/ollama:latest-phi3-c7d83a5dedca"},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.DerivedImage())
		})
	}
}

func TestDerivedImageTagLength(t *testing.T) {
	k := Key{BaseImage: "ollama/ollama:latest", Model: strings.Repeat("m", 200)}
	img := k.DerivedImage()
	_, tag, _ := strings.Cut(strings.TrimPrefix(img, "tc-ollama/ollama"), ":")
	assert.Len(t, tag, 128)
}

func TestDerivedImageDistinctKeys(t *testing.T) {
	long := strings.Repeat("m", 200)
	tests := []struct {
		name string
		a, b Key
	}{
		{"sanitized model", Key{"ollama/ollama:latest", "llama3.2:1b"}, Key{"ollama/ollama:latest", "llama3.2-1b"}},
		{"digest base", Key{"ollama/ollama@sha256:abcd", "phi3"}, Key{"ollama/ollama:latest", "phi3"}},
		{"two digests", Key{"ollama/ollama@sha256:abcd", "phi3"}, Key{"ollama/ollama@sha256:ef01", "phi3"}},
		{"truncated model", Key{"ollama/ollama:latest", long + "a"}, Key{"ollama/ollama:latest", long + "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a.DerivedImage(), tt.b.DerivedImage())
		})
	}
}

func TestKeyValidate(t *testing.T) {
	assert.NoError(t, Key{"ollama/ollama:latest", "llama3.1"}.Validate())
	assert.Error(t, Key{"", "llama3.1"}.Validate())
	assert.Error(t, Key{"ollama/ollama:latest", ""}.Validate())
}

func TestErrorMessages(t *testing.T) {
	pe := &ProvisioningError{Key: toolsKey, Elapsed: 1500 * time.Millisecond, Err: assert.AnError}
	assert.Contains(t, pe.Error(), "provisioning failed for ollama/ollama:latest+llama3.1 after 1.5s")

	te := &TimeoutError{Op: "provisioning", Key: toolsKey, Limit: time.Minute, Elapsed: 61 * time.Second}
	assert.Equal(t, "provisioning timed out for ollama/ollama:latest+llama3.1: limit 1m0s, elapsed 1m1s", te.Error())
}
