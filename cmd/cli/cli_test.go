package cli

import (
	"strings"
	"testing"
)

func TestParsePortList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{"single port", "80", []int{80}, false},
		{"multiple ports", "80,443,22", []int{80, 443, 22}, false},
		{"whitespace tolerated", " 80 , 443 ", []int{80, 443}, false},
		{"trailing comma tolerated", "80,", []int{80}, false},
		{"not a number", "80,web", nil, true},
		{"empty", "", nil, true},
		{"only commas", ",,", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePortList(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePortList(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePortList(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parsePortList(%q)[%d] = %d, want %d", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestJoinPorts(t *testing.T) {
	got := joinPorts([]int{21, 22, 80})
	if got != "21,22,80" {
		t.Errorf("joinPorts = %q, want 21,22,80", got)
	}
}

func TestCommandRegistration(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"serve", "check", "version"} {
		if !names[want] {
			t.Errorf("command %q not registered on root", want)
		}
	}
}

func TestSetVersion(t *testing.T) {
	origVersion, origCommit, origBuildTime := version, commit, buildTime
	defer SetVersion(origVersion, origCommit, origBuildTime)

	SetVersion("1.2.3", "abc123", "2026-08-27")
	if !strings.Contains(rootCmd.Version, "1.2.3") {
		t.Errorf("root version = %q, should contain 1.2.3", rootCmd.Version)
	}
	if !strings.Contains(rootCmd.Version, "abc123") {
		t.Errorf("root version = %q, should contain commit", rootCmd.Version)
	}
}
