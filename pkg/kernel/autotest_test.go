package kernel

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidcore/v3dlib/pkg/gen"
	"github.com/vidcore/v3dlib/pkg/target"
)

// TestAutoTestDifferential generates random programs and requires the
// source interpreter and the target emulator to produce byte-identical
// output streams.
func TestAutoTestDifferential(t *testing.T) {
	numTests := 2000
	if testing.Short() {
		numTests = 200
	}

	r := rand.New(rand.NewSource(0))
	opts := gen.BasicOptions()

	for test := 0; test < numTests; test++ {
		k, err := Compile(target.VC4, gen.Kernel(r, opts))
		require.NoError(t, err, "test %d", test)

		args := make([]any, opts.NumIntArgs)
		for i := range args {
			args[i] = int(gen.IntLit(r))
		}
		require.NoError(t, k.Load(args...), "test %d", test)

		var emuOut, interpOut bytes.Buffer
		k.SetOutput(&emuOut)
		require.NoError(t, k.Emu(), "test %d", test)
		k.SetOutput(&interpOut)
		require.NoError(t, k.Interpret(), "test %d", test)

		if !bytes.Equal(emuOut.Bytes(), interpOut.Bytes()) {
			var dump bytes.Buffer
			k.Pretty(&dump)
			t.Fatalf("test %d: interpreter and emulator disagree\nargs: %v\n%s\nemulator:    %q\ninterpreter: %q",
				test, args, dump.String(), emuOut.String(), interpOut.String())
		}
	}
}

// TestAutoTestOutputsNonTrivial guards against the generator producing
// programs with no observable output.
func TestAutoTestOutputsNonTrivial(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	k, err := Compile(target.VC4, gen.Kernel(r, gen.BasicOptions()))
	require.NoError(t, err)
	require.NoError(t, k.Load(1, 2, 3, 4))

	var out bytes.Buffer
	k.SetOutput(&out)
	require.NoError(t, k.Emu())
	require.NotZero(t, out.Len(), "generated programs must print their variables")
}

// TestAutoTestDeterministic pins the generator's seeding behaviour so
// differential failures reproduce.
func TestAutoTestDeterministic(t *testing.T) {
	run := func() string {
		r := rand.New(rand.NewSource(7))
		k, err := Compile(target.VC4, gen.Kernel(r, gen.BasicOptions()))
		require.NoError(t, err)
		require.NoError(t, k.Load(5, 6, 7, 8))
		var out bytes.Buffer
		k.SetOutput(&out)
		require.NoError(t, k.Emu())
		return out.String()
	}
	first := run()
	second := run()
	require.Equal(t, first, second)
}
