package silk

import "testing"

func TestIsInteractiveKnownTools(t *testing.T) {
	cases := []string{"vim foo.txt", "ssh host", "python3", "/usr/bin/vim file", "lazygit"}
	for _, c := range cases {
		if !IsInteractive(c) {
			t.Errorf("expected %q to be interactive", c)
		}
	}
}

func TestIsInteractiveBatch(t *testing.T) {
	cases := []string{"ls /", "echo hi", "cat file.txt", "grep foo bar.txt"}
	for _, c := range cases {
		if IsInteractive(c) {
			t.Errorf("expected %q to be batch", c)
		}
	}
}

func TestIsInteractiveFlag(t *testing.T) {
	if !IsInteractive("somecmd -i") {
		t.Error("expected -i flag to mark interactive")
	}
	if !IsInteractive("somecmd --interactive") {
		t.Error("expected --interactive flag to mark interactive")
	}
}
