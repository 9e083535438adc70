// Package cython invokes the external Cython compiler on a preprocessed
// variant and prepares its output for merging. Compilation is synchronous
// and fail-fast: a nonzero exit aborts the whole run. A Caching wrapper
// keys results by a digest of the preprocessed text so identical variants
// compile at most once per run.
package cython

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/phuslu/log"
)

// Compiler turns preprocessed source text into compiled output text.
type Compiler interface {
	Compile(source string) (string, error)
}

// InvocationError reports a failed external compiler run, echoing the
// command that was invoked.
type InvocationError struct {
	Command string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%q failed: %v", e.Command, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Exec shells out to the cython command. Each Compile writes the source to
// PyxPath, runs the command with -o OutputPath, and returns the
// postprocessed output file content.
type Exec struct {
	Command    string // compiler command, possibly with leading arguments
	PyxPath    string
	OutputPath string
	Banner     string
}

// Compile implements Compiler.
func (e *Exec) Compile(source string) (string, error) {
	if err := os.WriteFile(e.PyxPath, []byte(source), 0644); err != nil {
		return "", err
	}

	parts := strings.Fields(e.Command)
	args := append(parts[1:], "-o", e.OutputPath, e.PyxPath)
	command := strings.Join(append([]string{parts[0]}, args...), " ")
	log.Info().Str("command", command).Msg("running cython")

	cmd := exec.Command(parts[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			fmt.Fprint(os.Stderr, stderr.String())
		}
		return "", &InvocationError{Command: command, Err: err}
	}

	content, err := os.ReadFile(e.OutputPath)
	if err != nil {
		return "", err
	}
	return Postprocess(string(content), e.Banner), nil
}

// Caching wraps a Compiler with a per-run cache keyed by a digest of the
// source text. It is append-only and scoped to one pipeline invocation.
type Caching struct {
	inner Compiler
	cache map[string]string
	calls int
}

// NewCaching creates a cache around inner.
func NewCaching(inner Compiler) *Caching {
	return &Caching{inner: inner, cache: make(map[string]string)}
}

// Compile implements Compiler, reusing the cached result for previously
// seen source text.
func (c *Caching) Compile(source string) (string, error) {
	key := Digest(source)
	if result, ok := c.cache[key]; ok {
		log.Info().Str("digest", key).Msg("reusing cached cython output")
		return result, nil
	}
	c.calls++
	result, err := c.inner.Compile(source)
	if err != nil {
		return "", err
	}
	c.cache[key] = result
	return result, nil
}

// Calls reports how many times the underlying compiler actually ran.
func (c *Caching) Calls() int {
	return c.calls
}

// Digest returns the content digest used as the cache key.
func Digest(source string) string {
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}
