package cli

import (
	"strings"
	"testing"

	"github.com/matzehuels/wkimage/pkg/errors"
)

func TestSettingsCommand(t *testing.T) {
	c, engine := newTestCLI(t)

	out, err := execute(c, "", "settings", "--width", "640", "--transparent")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for _, want := range []string{"screenWidth=640", "transparent=true", "quality=94", "loadPage.jsdelay=0"} {
		if !contains(lines, want) {
			t.Errorf("settings output missing %q:\n%s", want, out)
		}
	}
	if engine.Inits() != 0 {
		t.Error("settings should not load the engine")
	}
}

func TestSettingsCommandConfig(t *testing.T) {
	c, _ := newTestCLI(t)
	cfg := writeConfig(t, "[image]\nfmt = \"svg\"\nscreenHeight = 300\n")

	out, err := execute(c, "", "settings", "--config", cfg)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for _, want := range []string{"fmt=svg", "screenHeight=300"} {
		if !contains(lines, want) {
			t.Errorf("settings output missing %q:\n%s", want, out)
		}
	}
}

func TestSettingsCommandInvalid(t *testing.T) {
	c, _ := newTestCLI(t)

	_, err := execute(c, "", "settings", "--format", "gif")
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want %s", err, errors.ErrCodeInvalidFormat)
	}
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
