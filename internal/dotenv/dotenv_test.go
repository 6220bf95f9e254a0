package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# comment
VOICEWIRE_TEST_A=plain
export VOICEWIRE_TEST_B="quoted value"
VOICEWIRE_TEST_C='single'

not-a-pair
=nokey
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VOICEWIRE_TEST_A", "preexisting")
	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := os.Getenv("VOICEWIRE_TEST_A"); got != "preexisting" {
		t.Errorf("existing var overwritten: %q", got)
	}
	if got := os.Getenv("VOICEWIRE_TEST_B"); got != "quoted value" {
		t.Errorf("VOICEWIRE_TEST_B = %q", got)
	}
	if got := os.Getenv("VOICEWIRE_TEST_C"); got != "single" {
		t.Errorf("VOICEWIRE_TEST_C = %q", got)
	}
	os.Unsetenv("VOICEWIRE_TEST_B")
	os.Unsetenv("VOICEWIRE_TEST_C")
}

func TestLoadMissingFileIsNoError(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
}
