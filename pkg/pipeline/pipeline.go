// Package pipeline drives the whole run: enumerate configurations,
// preprocess the source once per configuration plus once unresolved, align
// the streams, compile each variant through the (cached) external compiler,
// merge the compiled outputs, and re-emit conditional directives around the
// differences. Destination files are only written after the entire merge
// succeeds, via write-then-rename.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/raymyers/cypp/pkg/align"
	"github.com/raymyers/cypp/pkg/configs"
	"github.com/raymyers/cypp/pkg/cython"
	"github.com/raymyers/cypp/pkg/emit"
	"github.com/raymyers/cypp/pkg/merge"
	"github.com/raymyers/cypp/pkg/preprocess"
)

// referenceKey identifies the unresolved reference stream during
// alignment. Configuration keys are formatted condition lists and never
// collide with it.
const referenceKey = "<reference>"

// Options configures a run.
type Options struct {
	OutputFile        string          // merged output path; default input with .c extension
	CythonCommand     string          // external compiler command; default "cython"
	WriteIntermediate bool            // save per-configuration .pyx.N / .c.N files
	Compiler          cython.Compiler // overrides CythonCommand; used by tests
	Now               func() time.Time
}

// OutputFilename returns the sibling compiled-output path for an input.
func OutputFilename(filename string) string {
	return trimExt(filename) + ".c"
}

// PyxFilename returns the sibling path the reference pass is written to.
func PyxFilename(filename string) string {
	return trimExt(filename) + ".pyx"
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// ProcessFile preprocesses filename once per configuration, compiles each
// variant, and writes the merged result and the unresolved reference copy
// next to the input.
func ProcessFile(filename string, opts Options) error {
	outputFilename := opts.OutputFile
	if outputFilename == "" {
		outputFilename = OutputFilename(filename)
	}
	pyxFilename := PyxFilename(filename)
	if pyxFilename == filename {
		return fmt.Errorf("input %s already has the .pyx extension", filename)
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	source := string(content)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	banner := "Generated by cypp on " + now().Format("2006-01-02 15:04:05")
	pyBanner := "# " + banner + "\n"

	cfgs, err := configs.Configurations(filename, source)
	if err != nil {
		return err
	}

	streams := make(map[string][]preprocess.Line, len(cfgs)+1)
	for _, cfg := range cfgs {
		lines, err := preprocess.Run(filename, source, cfg)
		if err != nil {
			return err
		}
		streams[cfg.Key()] = lines
	}
	reference, err := preprocess.Run(filename, source, nil)
	if err != nil {
		return err
	}
	streams[referenceKey] = reference

	aligned := align.Expand(streams)
	referenceText := strings.Join(aligned[referenceKey], "")

	compiler := opts.Compiler
	if compiler == nil {
		command := opts.CythonCommand
		if command == "" {
			command = "cython"
		}
		compiler = &cython.Exec{
			Command:    command,
			PyxPath:    pyxFilename,
			OutputPath: outputFilename,
			Banner:     banner,
		}
	}
	caching := cython.NewCaching(compiler)

	// Fold positive polarities first so emitted blocks open with the
	// defined case and the complement lands in the #else branch.
	ordered := make([]*configs.Config, len(cfgs))
	for i, cfg := range cfgs {
		ordered[len(cfgs)-1-i] = cfg
	}

	var sources [][]merge.Line
	for counter, cfg := range ordered {
		value := pyBanner + strings.Join(aligned[cfg.Key()], "")
		comment := cfg.Tag().String()
		log.Debug().Str("configuration", comment).Msg("compiling variant")

		output, err := caching.Compile(value)
		if err != nil {
			return err
		}
		if opts.WriteIntermediate {
			if err := writeIntermediates(pyxFilename, outputFilename, counter+1, banner, comment, value, output); err != nil {
				return err
			}
		}
		sources = append(sources, merge.Attach(output, cfg.Tag()))
	}

	merged := merge.Merge(sources)
	result := cython.RestoreNewlines(strings.Join(emit.Produce(merged), ""))

	if err := atomicWrite(outputFilename, []byte(result)); err != nil {
		return err
	}
	log.Info().Str("output", outputFilename).Int("bytes", len(result)).Msg("generated")

	log.Info().Str("output", pyxFilename).Msg("saving reference")
	return atomicWrite(pyxFilename, []byte(pyBanner+referenceText))
}

// writeIntermediates saves the numbered per-configuration variant files.
func writeIntermediates(pyxFilename, outputFilename string, counter int, banner, comment, value, output string) error {
	pyx := fmt.Sprintf("%s.%d", pyxFilename, counter)
	header := fmt.Sprintf("# %s (%s)\n", banner, comment)
	if err := atomicWrite(pyx, []byte(header+value)); err != nil {
		return err
	}
	out := fmt.Sprintf("%s.%d", outputFilename, counter)
	return atomicWrite(out, []byte(output))
}

// atomicWrite writes data to a sibling temp file and renames it into
// place, so the destination is never observed half-written.
func atomicWrite(filename string, data []byte) error {
	tmpname := fmt.Sprintf("%s.tmp.%d", filename, os.Getpid())
	f, err := os.Create(tmpname)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpname)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpname)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpname)
		return err
	}
	return os.Rename(tmpname, filename)
}
