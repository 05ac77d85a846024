package storagetest

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
)

var configureOnce sync.Once

// RequireContainers skips t when integration tests are disabled and points
// testcontainers at a podman machine socket when DOCKER_HOST is unset.
func RequireContainers(t *testing.T) {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping container-backed tests")
	}

	configureOnce.Do(configurePodman)
}

func configurePodman() {
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}
