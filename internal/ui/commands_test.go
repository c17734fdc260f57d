package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainTextIsSay(t *testing.T) {
	cmd, err := ParseCommand("  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, CmdSay, cmd.Name)
	assert.Equal(t, "hello there", cmd.Text)
}

func TestParseEscapedSlash(t *testing.T) {
	cmd, err := ParseCommand("//shrug")
	require.NoError(t, err)
	assert.Equal(t, CmdSay, cmd.Name)
	assert.Equal(t, "/shrug", cmd.Text)
}

func TestParseCommandArgs(t *testing.T) {
	cmd, err := ParseCommand("/Accept bob  Bob Smith")
	require.NoError(t, err)
	assert.Equal(t, "accept", cmd.Name)
	assert.Equal(t, "bob", cmd.Arg(0))
	assert.Equal(t, "Bob Smith", cmd.Rest(1))
	assert.Equal(t, "", cmd.Arg(5))
	assert.Equal(t, "", cmd.Rest(5))

	cmd, err = ParseCommand("/file /tmp/my holiday.png")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/my holiday.png", cmd.Text)

	cmd, err = ParseCommand("/invite a b c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cmd.Args)
}

func TestParseErrors(t *testing.T) {
	_, err := ParseCommand("   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = ParseCommand("/teleport home")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ParseCommand("/connect")
	assert.ErrorIs(t, err, ErrMissingArgument)
	assert.Contains(t, err.Error(), "/connect <id>")

	_, err = ParseCommand("/hangup")
	assert.NoError(t, err)
}

func TestHelpListsEveryCommand(t *testing.T) {
	help := HelpView()
	for _, spec := range commandSpecs {
		assert.Contains(t, help, spec.usage)
	}
}
