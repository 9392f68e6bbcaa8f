package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf, plain: true}

	p.Step(2, 4, "cropping %s", "clip")
	p.OK("done")
	p.Warn("only %d of %d", 1, 2)
	p.Fail("nope")
	p.Banner("hlshorts", "session abcd1234")

	got := buf.String()
	for _, want := range []string{
		"[2/4] cropping clip\n",
		"✓ done\n",
		"! only 1 of 2\n",
		"✗ nope\n",
		"== hlshorts ==\nsession abcd1234\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}
