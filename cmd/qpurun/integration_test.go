package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// IntegrationCase is one entry of testdata/kernels.yaml.
type IntegrationCase struct {
	Name   string   `yaml:"name"`
	Kernel string   `yaml:"kernel"`
	QPUs   int      `yaml:"qpus"`
	Want   []string `yaml:"want"`
	Skip   string   `yaml:"skip,omitempty"`
}

// IntegrationFile is the yaml fixture layout.
type IntegrationFile struct {
	Tests []IntegrationCase `yaml:"tests"`
}

func loadCases(t *testing.T) []IntegrationCase {
	t.Helper()
	data, err := os.ReadFile("testdata/kernels.yaml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var file IntegrationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return file.Tests
}

func TestKernelsFixture(t *testing.T) {
	for _, tc := range loadCases(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}
			runner, ok := kernels[tc.Kernel]
			if !ok {
				t.Fatalf("unknown kernel %q", tc.Kernel)
			}
			s := &settings{
				kernelName: tc.Kernel,
				numQPUs:    tc.QPUs,
				display:    true,
			}
			var out bytes.Buffer
			if err := runner(s, &out); err != nil {
				t.Fatalf("run: %v", err)
			}
			for _, want := range tc.Want {
				if !containsLine(out.String(), want) {
					t.Errorf("output missing line %q\n%s", want, out.String())
				}
			}
		})
	}
}

func containsLine(out, want string) bool {
	for _, line := range strings.Split(out, "\n") {
		if line == want {
			return true
		}
	}
	return false
}

func TestCLIUnknownKernel(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-k", "no-such-kernel"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("unknown kernel should fail")
	}
}

func TestCLICompileOnly(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-k", "tri", "--compile-only", "--output-code"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("compile-only run failed: %v", err)
	}
	if out.Len() == 0 {
		t.Error("--output-code should dump machine words")
	}
}

func TestCLIPerfCounters(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-k", "int_ops", "--pc"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "instructions executed") {
		t.Error("perf counter output missing")
	}
	// And the counters are rejected for v3d.
	cmd = newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-k", "int_ops", "--pc", "--v3d"})
	if err := cmd.Execute(); err == nil {
		t.Error("perf counters should be vc4-only")
	}
}

func TestCLISilent(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-k", "hello", "-d", "--silent"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("silent run should not print results, got %q", out.String())
	}
}

func TestKernelNamesSorted(t *testing.T) {
	names := kernelNames()
	if len(names) < 5 {
		t.Fatalf("expected the example kernels, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("kernel names not sorted: %v", names)
		}
	}
}
