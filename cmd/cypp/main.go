package main

import (
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/cypp/pkg/configs"
	"github.com/raymyers/cypp/pkg/pipeline"
	"github.com/raymyers/cypp/pkg/preprocess"
)

var version = "0.1.0"

// CLI flags
var (
	debugFlag             bool
	listFlag              bool
	listCondFlag          bool
	ignoreCondFlag        bool
	writeIntermediateFlag bool
	outputFileFlag        string
	cythonFlag            string
	configFlag            string
)

// fileConfig is the optional YAML configuration file loaded via --config.
type fileConfig struct {
	Cython            string `yaml:"cython"`
	OutputFile        string `yaml:"output_file"`
	WriteIntermediate bool   `yaml:"write_intermediate"`
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cypp: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cypp [files]",
		Short: "cypp expands conditional sections by compiling every configuration",
		Long: `cypp preprocesses sources that mix #ifdef/#if/#else/#endif sections and
#define macros, compiles every consistent configuration separately through
an external cython compiler, and merges the compiled variants back into a
single output wrapped in the minimal conditional directives.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(errOut)

			if len(args) == 0 {
				cmd.Help()
				return nil
			}

			fileCfg, err := loadFileConfig(configFlag)
			if err != nil {
				return err
			}

			for _, filename := range args {
				switch {
				case listCondFlag:
					err = doListCond(filename, out, errOut)
				case listFlag:
					err = doList(filename, out, errOut)
				case ignoreCondFlag:
					err = doIgnoreCond(filename, out, errOut)
				default:
					err = doProcess(filename, fileCfg, errOut)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&listFlag, "list", false, "List the configurations of each file, do not compile")
	rootCmd.Flags().BoolVar(&listCondFlag, "list-cond", false, "List the condition stacks of each file, do not compile")
	rootCmd.Flags().BoolVar(&ignoreCondFlag, "ignore-cond", false, "Ignore conditional directives (only expand definitions)")
	rootCmd.Flags().BoolVar(&writeIntermediateFlag, "write-intermediate", false, "Save the per-configuration .pyx.N and .c.N files")
	rootCmd.Flags().StringVarP(&outputFileFlag, "output-file", "o", "", "Merged output path (default: input with .c extension)")
	rootCmd.Flags().StringVar(&cythonFlag, "cython", "", "Compiler command (default: $CYTHON or \"cython\")")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "YAML configuration file")

	return rootCmd
}

// setupLogging points the default logger at stderr. Debug tracing of macro
// substitution is very chatty and only enabled on request.
func setupLogging(errOut io.Writer) {
	level := log.InfoLevel
	if debugFlag {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level: level,
		Writer: &log.ConsoleWriter{
			ColorOutput: false,
			Writer:      errOut,
		},
	}
}

// loadFileConfig reads the optional --config YAML file.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// cythonCommand resolves the compiler command: flag, then config file, then
// the CYTHON environment variable, then "cython".
func cythonCommand(fileCfg fileConfig) string {
	if cythonFlag != "" {
		return cythonFlag
	}
	if fileCfg.Cython != "" {
		return fileCfg.Cython
	}
	if env := os.Getenv("CYTHON"); env != "" {
		return env
	}
	return "cython"
}

// doListCond prints every distinct condition stack observed in the file.
func doListCond(filename string, out, errOut io.Writer) error {
	source, err := readSource(filename, errOut)
	if err != nil {
		return err
	}
	stacks, err := configs.Conditions(filename, source)
	if err != nil {
		return err
	}
	for _, stack := range stacks {
		fmt.Fprintf(out, "* %s\n", stack)
	}
	return nil
}

// doList prints every complete configuration the file expands to.
func doList(filename string, out, errOut io.Writer) error {
	source, err := readSource(filename, errOut)
	if err != nil {
		return err
	}
	cfgs, err := configs.Configurations(filename, source)
	if err != nil {
		return err
	}
	for _, cfg := range cfgs {
		fmt.Fprintf(out, "* %s\n", cfg.Key())
	}
	return nil
}

// doIgnoreCond preprocesses with every condition resolved false, so only
// macro definitions are expanded, and writes the result to stdout.
func doIgnoreCond(filename string, out, errOut io.Writer) error {
	source, err := readSource(filename, errOut)
	if err != nil {
		return err
	}
	lines, err := preprocess.Run(filename, source, configs.IgnoreAll())
	if err != nil {
		return err
	}
	fmt.Fprint(out, preprocess.Text(lines))
	return nil
}

// doProcess runs the full per-configuration compile and merge.
func doProcess(filename string, fileCfg fileConfig, errOut io.Writer) error {
	opts := pipeline.Options{
		OutputFile:        outputFileFlag,
		CythonCommand:     cythonCommand(fileCfg),
		WriteIntermediate: writeIntermediateFlag || fileCfg.WriteIntermediate,
	}
	if opts.OutputFile == "" {
		opts.OutputFile = fileCfg.OutputFile
	}
	if err := pipeline.ProcessFile(filename, opts); err != nil {
		fmt.Fprintf(errOut, "cypp: error processing %s: %v\n", filename, err)
		return err
	}
	return nil
}

func readSource(filename string, errOut io.Writer) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "cypp: error reading %s: %v\n", filename, err)
		return "", err
	}
	return string(content), nil
}
