package cmd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smoynes/memsim/internal/cli"
	"github.com/smoynes/memsim/internal/cli/cmd"
)

// TestHelpUsageListsCommands verifies the help command's usage text names
// every registered sub-command along with its description.
func TestHelpUsageListsCommands(t *testing.T) {
	commands := []cli.Command{cmd.Run(), cmd.Monitor()}

	h := cmd.Help(commands)

	var out bytes.Buffer
	if err := h.Usage(&out); err != nil {
		t.Fatalf("Usage: %v", err)
	}

	got := out.String()

	for _, want := range []string{"memsim <command>", "run", "monitor", "help"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected usage text to mention %q, got:\n%s", want, got)
		}
	}
}
