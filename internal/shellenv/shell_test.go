package shellenv

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		shell   string
		android bool
		want    Kind
	}{
		{shell: "/usr/bin/fish", want: KindFish},
		{shell: "/bin/zsh", want: KindZsh},
		{shell: "/bin/bash", want: KindBash},
		{shell: "/bin/sh", want: KindPosix},
		{shell: "/bin/dash", want: KindPosix},
		{shell: "/usr/bin/nushell", want: KindUnknown},
		{shell: "", want: KindUnknown},
		{shell: "/bin/zsh", android: true, want: KindBash},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			if got := Detect(tt.shell, tt.android); got != tt.want {
				t.Errorf("Detect(%q, %v) = %v, want %v", tt.shell, tt.android, got, tt.want)
			}
		})
	}
}

func TestCandidatesOrder(t *testing.T) {
	got := candidates(KindBash, "/home/u", "/home/u/.config", "/home/u")

	want := []string{"/home/u/.bashrc", "/home/u/.bash_profile", "/home/u/.profile"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidates[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCandidatesZdotdir(t *testing.T) {
	got := candidates(KindZsh, "/home/u", "/home/u/.config", "/custom/zdot")

	if got[0] != "/custom/zdot/.zshrc" {
		t.Errorf("candidates[0] = %q, want ZDOTDIR variant first", got[0])
	}

	if got[1] != "/home/u/.zshrc" {
		t.Errorf("candidates[1] = %q, want home fallback", got[1])
	}
}

func TestPathLine(t *testing.T) {
	tests := []struct {
		kind Kind
		dir  string
		want string
	}{
		{kind: KindFish, dir: "/home/u/.opencode/bin", want: "fish_add_path /home/u/.opencode/bin"},
		{kind: KindFish, dir: "/home/my user/bin", want: `fish_add_path '/home/my user/bin'`},
		{kind: KindFish, dir: "/home/o'brien/bin", want: `fish_add_path '/home/o\'brien/bin'`},
		{kind: KindZsh, dir: "/home/u/.opencode/bin", want: "export PATH=/home/u/.opencode/bin:$PATH"},
		{kind: KindBash, dir: "/home/my user/bin", want: `export PATH='/home/my user/bin':$PATH`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := pathLine(tt.kind, tt.dir); got != tt.want {
				t.Errorf("pathLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
