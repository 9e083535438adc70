package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// IntegrationTestSpec represents a single integration test case
type IntegrationTestSpec struct {
	Name        string   `yaml:"name"`
	Input       string   `yaml:"input"`
	Expect      []string `yaml:"expect"`       // Strings that must appear in output
	ExpectOrder []string `yaml:"expect_order"` // Strings that must appear in this order
	ExpectNot   []string `yaml:"expect_not"`   // Strings that must NOT appear in output
	Skip        string   `yaml:"skip,omitempty"`
}

// IntegrationTestFile represents the integration.yaml file structure
type IntegrationTestFile struct {
	Tests []IntegrationTestSpec `yaml:"tests"`
}

// fakeCythonScript stands in for the real cython binary. It drops blank and
// hash-prefixed lines and rewrites the marker lines, so each variant
// "compiles" to just its surviving content.
const fakeCythonScript = `#!/bin/sh
out=""
in=""
while [ "$#" -gt 0 ]; do
	case "$1" in
	-o) out="$2"; shift 2 ;;
	*) in="$1"; shift ;;
	esac
done
sed -e '/^#/d' -e '/^$/d' \
	-e 's/^lineA$/outA/' -e 's/^lineB$/outB/' -e 's/^lineC$/outC/' \
	"$in" > "$out"
`

func writeFakeCython(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cython")
	if err := os.WriteFile(path, []byte(fakeCythonScript), 0755); err != nil {
		t.Fatalf("failed to write fake cython: %v", err)
	}
	return path
}

func runCypp(t *testing.T, script, input string, extraArgs ...string) string {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--cython", script, input}, extraArgs...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cypp failed: %v\nStderr: %s", err, errOut.String())
	}

	merged, err := os.ReadFile(strings.TrimSuffix(input, ".ppyx") + ".c")
	if err != nil {
		t.Fatalf("failed to read merged output: %v", err)
	}
	return string(merged)
}

func TestIntegrationMerge(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}

	data, err := os.ReadFile("../../testdata/integration.yaml")
	if err != nil {
		t.Fatalf("integration.yaml not found: %v", err)
	}

	var testFile IntegrationTestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse integration.yaml: %v", err)
	}

	script := writeFakeCython(t)

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			input := filepath.Join(t.TempDir(), "test.ppyx")
			if err := os.WriteFile(input, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			output := runCypp(t, script, input)

			for _, want := range tc.Expect {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, output)
				}
			}

			offset := 0
			for _, want := range tc.ExpectOrder {
				idx := strings.Index(output[offset:], want)
				if idx < 0 {
					t.Errorf("expected %q after offset %d, got:\n%s", want, offset, output)
					break
				}
				offset += idx + len(want)
			}

			for _, unwanted := range tc.ExpectNot {
				if strings.Contains(output, unwanted) {
					t.Errorf("expected output to NOT contain %q, got:\n%s", unwanted, output)
				}
			}
		})
	}
}

func TestIntegrationReferenceFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}

	script := writeFakeCython(t)
	input := filepath.Join(t.TempDir(), "test.ppyx")
	source := "#ifdef F\nlineA\n#else\nlineB\n#endif\n"
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	runCypp(t, script, input)

	reference, err := os.ReadFile(strings.TrimSuffix(input, ".ppyx") + ".pyx")
	if err != nil {
		t.Fatalf("failed to read reference file: %v", err)
	}
	if !strings.HasSuffix(string(reference), source) {
		t.Errorf("reference file should end with the unresolved source, got:\n%s", reference)
	}
	if !strings.HasPrefix(string(reference), "# Generated by cypp on ") {
		t.Errorf("reference file should start with the banner, got:\n%s", reference)
	}
}

func TestIntegrationWriteIntermediate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}

	script := writeFakeCython(t)
	input := filepath.Join(t.TempDir(), "test.ppyx")
	if err := os.WriteFile(input, []byte("#ifdef F\nlineA\n#else\nlineB\n#endif\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	runCypp(t, script, input, "--write-intermediate")

	base := strings.TrimSuffix(input, ".ppyx")
	for _, suffix := range []string{".pyx.1", ".pyx.2", ".c.1", ".c.2"} {
		if _, err := os.Stat(base + suffix); err != nil {
			t.Errorf("expected intermediate file %s%s to be created: %v", base, suffix, err)
		}
	}
}

func TestIntegrationOutputFileFlag(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}

	script := writeFakeCython(t)
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "test.ppyx")
	if err := os.WriteFile(input, []byte("lineC\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	custom := filepath.Join(tmpDir, "custom.c")

	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--cython", script, "-o", custom, input})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cypp failed: %v\nStderr: %s", err, errOut.String())
	}

	merged, err := os.ReadFile(custom)
	if err != nil {
		t.Fatalf("failed to read custom output: %v", err)
	}
	if !strings.Contains(string(merged), "outC") {
		t.Errorf("expected custom output to contain %q, got:\n%s", "outC", merged)
	}
}
