//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"s": Sums,
}

const (
	binaryName = "checksums"
	mainPkg    = "./cmd/checksums"
	binDir     = "bin"
)

// All lints, tests and builds.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Build compiles the checksums binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}
	return sh.RunV("go", "build", "-ldflags", buildLdflags(), "-o", binaryPath(binDir), mainPkg)
}

// Sums builds checksums and uses it to write a manifest for bin/, then
// verifies it.
func Sums() error {
	st.Deps(Build)
	bin := binaryPath(binDir)
	if err := sh.RunV(bin, "generate", "--no-interactive", "--no-history", binDir); err != nil {
		return err
	}
	return sh.RunV(bin, "verify", "--no-interactive", "--no-history",
		filepath.Join(binDir, "files_checksum.md5"))
}

// Install copies the built binary to GOBIN, GOPATH/bin or /usr/local/bin.
func Install() error {
	st.Deps(Build)
	dir, err := installDir()
	if err != nil {
		return err
	}
	src, dst := binaryPath(binDir), binaryPath(dir)
	if st.Verbose() {
		fmt.Printf("Installing %s to %s\n", src, dst)
	}
	return sh.Copy(dst, src)
}

// Uninstall removes the installed binary.
func Uninstall() error {
	dir, err := installDir()
	if err != nil {
		return err
	}
	target := binaryPath(dir)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return nil
	}
	if st.Verbose() {
		fmt.Printf("Removing %s\n", target)
	}
	return os.Remove(target)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm(binDir + "/")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func binaryPath(dir string) string {
	p := filepath.Join(dir, binaryName)
	if runtime.GOOS == "windows" {
		p += ".exe"
	}
	return p
}

func installDir() (string, error) {
	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin != "" {
		return bin, nil
	}
	gopath, err := sh.Output(gocmd, "env", "GOPATH")
	if err != nil {
		return "", fmt.Errorf("determining GOPATH: %w", err)
	}
	if gopath == "" {
		return "/usr/local/bin", nil
	}
	return filepath.Join(gopath, "bin"), nil
}

// buildLdflags injects version, commit and build date.
func buildLdflags() string {
	version, commit := "dev", "none"
	date := time.Now().Format(time.RFC3339)

	if v, err := sh.Output("git", "describe", "--tags", "--always"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}

	const pkg = "main"
	return fmt.Sprintf("-X %s.version=%s -X %s.commit=%s -X %s.date=%s",
		pkg, version, pkg, commit, pkg, date)
}
