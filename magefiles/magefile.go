//go:build mage

// Package main provides build targets for the cypress project using Mage.
//
// Usage:
//
//	mage build          Compile the cypress binary to bin/
//	mage test:all       Run all tests
//	mage test:short     Run tests in -short mode without the race detector
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install cypress to GOPATH/bin
//	mage stats          Print Go lines of code
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "cypress"
	binaryDir  = "bin"
	cmdDir     = "./cmd/cypress"
	versionVar = "github.com/mesh-intelligence/cypress/internal/cli.Version"
)

// Test groups the test targets.
type Test mg.Namespace

// Build compiles the cypress binary to bin/. CYPRESS_VERSION, when set, is
// stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v"}
	if v := os.Getenv("CYPRESS_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV(binGo, args...)
}

// All runs every test. The Postgres suite runs only when
// CYPRESS_TEST_POSTGRES_DSN is set.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Short runs tests in -short mode.
func (Test) Short() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints Go lines of code split into production and test code.
func Stats() error {
	var prodLines, testLines int

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") {
			testLines += count
		} else {
			prodLines += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Lines of code (Go, total):      %d\n", prodLines+testLines)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
