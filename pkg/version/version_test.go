package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf)
	assert.Equal(t, "xenclean dev\n", buf.String())
}

func TestPrintFull(t *testing.T) {
	var buf bytes.Buffer
	PrintFull(&buf)
	assert.Contains(t, buf.String(), "xenclean dev\n")
	assert.Contains(t, buf.String(), "revision: \tunknown")
}
