package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadIdea(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "args joined", args: []string{"grocery", "list"}, stdin: "ignored", want: "grocery list"},
		{name: "stdin fallback", stdin: "  a recipe box\n", want: "a recipe box"},
		{name: "blank args use stdin", args: []string{"  "}, stdin: "notes", want: "notes"},
		{name: "nothing", stdin: " \n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readIdea(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "generate", "mcp", "status", "stop", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestGenerate_RejectsUnknownFormat(t *testing.T) {
	formatFlag = "pdf"
	defer func() { formatFlag = "json" }()

	err := runGenerate(generateCmd, []string{"idea"})
	assert.ErrorContains(t, err, "unknown format")
}
