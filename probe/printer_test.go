package probe_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/qntx/otprobe/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterPlain(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	p := probe.NewPrinter(&out, false)
	p.OnOpened()
	p.OnMessage([]byte(`["ok"]`))
	p.OnMessage([]byte("not json at all"))
	p.OnClosed(1001, "going away")

	assert.Equal(t, "Opened up\n[\"ok\"]\n\nnot json at all\n\nClosed down 1001 going away\n", out.String())
}

func TestPrinterNoColorWhenRedirected(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	var buf bytes.Buffer

	for _, w := range []io.Writer{f, &buf} {
		p := probe.NewPrinter(w, true)
		p.OnOpened()
		p.OnMessage([]byte("payload"))
		p.OnClosed(1000, "normal")
	}

	want := "Opened up\npayload\n\nClosed down 1000 normal\n"

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	assert.Equal(t, want, buf.String())
}
