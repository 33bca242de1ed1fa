// qpurun runs the example kernels through the compilation pipeline and
// one of the execution sinks.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidcore/v3dlib/pkg/target"
)

var version = "0.1.0"

type settings struct {
	kernelName   string
	numQPUs      int
	display      bool
	perfCounters bool
	silent       bool
	compileOnly  bool
	outputCode   bool
	v3dMode      bool
}

func (s *settings) platform() target.Platform {
	if s.v3dMode {
		return target.V3D
	}
	return target.VC4
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	args := os.Args[1:]
	for i, a := range args {
		// Accept the single-dash spelling of long flags, e.g. -pc.
		name, _, _ := strings.Cut(strings.TrimPrefix(a, "-"), "=")
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") &&
			len(name) > 1 && rootCmd.Flags().Lookup(name) != nil {
			args[i] = "-" + a
		}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func kernelNames() []string {
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	s := &settings{}
	rootCmd := &cobra.Command{
		Use:   "qpurun",
		Short: "qpurun compiles and runs QPU example kernels",
		Long: `qpurun compiles the built-in example kernels for the vc4 or v3d
QPU and runs them on the target emulator (or an attached device).`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, ok := kernels[s.kernelName]
			if !ok {
				return fmt.Errorf("unknown kernel %q (have: %s)",
					s.kernelName, strings.Join(kernelNames(), ", "))
			}
			return runner(s, out)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVarP(&s.kernelName, "kernel", "k", "hello", "Kernel to run")
	rootCmd.Flags().IntVarP(&s.numQPUs, "num-qpus", "n", 1, "Number of QPUs to use")
	rootCmd.Flags().BoolVarP(&s.display, "display", "d", false, "Display the results")
	rootCmd.Flags().BoolVar(&s.perfCounters, "pc", false, "Show performance counters (vc4 only)")
	rootCmd.Flags().BoolVar(&s.silent, "silent", false, "Suppress result output")
	rootCmd.Flags().BoolVar(&s.compileOnly, "compile-only", false, "Compile the kernel but do not run it")
	rootCmd.Flags().BoolVar(&s.outputCode, "output-code", false, "Dump the encoded machine code")
	rootCmd.Flags().BoolVar(&s.v3dMode, "v3d", false, "Compile for v3d instead of vc4")

	return rootCmd
}
