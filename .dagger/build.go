package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/sleeves/internal/dagger"
)

// Build and return directory of go binaries
func (s *Sleeves) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// cgo rules out cross compilation from one container, so each
	// architecture builds natively in its own platform container.
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	for _, platform := range platforms {
		// create directory for each OS and architecture
		path := string(platform) + "/"

		// build artifact
		build := s.goContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/sleeves"})

		// add build to outputs
		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (s *Sleeves) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/sleeves/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/sleeves/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/sleeves/pkg/utils.Buildtime=%s'", buildtime),
	}

	return s.Build(ctx, strings.Join(ldflags, " "))
}
