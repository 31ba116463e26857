// Sleeves CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/sleeves/internal/dagger"
)

// Sleeves is the main module for the Sleeves CI/CD pipeline
type Sleeves struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Sleeves CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".sleeves"]
	source *dagger.Directory,
) *Sleeves {
	return &Sleeves{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container for the given
// platform with gcc, libsqlite3-dev, CGO enabled, and the project source
// mounted. An empty platform uses the engine's native platform.
//
// CGO is required by go-sqlite3 and the sqlite-vec bindings, so this is the
// shared foundation for tests, builds, and linting.
func (s *Sleeves) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", s.Source)
}

// Test runs the sleeves unit tests via "go test". Postgres backend specs
// run only when SLEEVES_TEST_POSTGRES_DSN is set, so they are skipped here.
func (s *Sleeves) Test(ctx context.Context) (string, error) {
	return s.goContainer("").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
