package command_test

import (
	"testing"

	"github.com/qntx/otprobe/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     command.Command
		want    string
		wantErr error
	}{
		{name: "Login", cmd: command.Login("test", "test"), want: `["login", "test", "test"]`},
		{name: "Securities", cmd: command.Securities(), want: `["securities"]`},
		{name: "Escaped", cmd: command.Command{"login", `a"b`, `c\d`}, want: `["login", "a\"b", "c\\d"]`},
		{name: "Empty", cmd: command.Command{}, wantErr: command.ErrEmpty},
		{name: "BlankName", cmd: command.Command{"", "x"}, wantErr: command.ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.cmd.Encode()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestNameAndArgs(t *testing.T) {
	t.Parallel()

	login := command.Login("alice", "secret")
	assert.Equal(t, command.NameLogin, login.Name())
	assert.Equal(t, []string{"alice", "secret"}, login.Args())

	assert.Empty(t, command.Command{}.Name())
	assert.Nil(t, command.Securities().Args())
	assert.Equal(t, "<invalid command>", command.Command{}.String())
}

func TestDecode(t *testing.T) {
	t.Parallel()

	c, err := command.Decode([]byte(`["login", "test", "test"]`))
	require.NoError(t, err)
	assert.Equal(t, command.Login("test", "test"), c)

	_, err = command.Decode([]byte(`[]`))
	require.ErrorIs(t, err, command.ErrEmpty)

	_, err = command.Decode([]byte(`{"login": true}`))
	require.Error(t, err)
}

func TestParseList(t *testing.T) {
	t.Parallel()

	list, err := command.ParseList("  ")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = command.ParseList(`[["securities"], ["sub", "AAPL"]]`)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, command.Securities(), list[0])
	assert.Equal(t, "sub", list[1].Name())

	_, err = command.ParseList(`[["securities"], []]`)
	require.ErrorIs(t, err, command.ErrEmpty)

	_, err = command.ParseList(`not json`)
	require.Error(t, err)
}
