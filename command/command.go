// Package command encodes the JSON array commands understood by the OT
// gateway, such as ["login", "user", "pass"].
package command

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	json "github.com/bytedance/sonic"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// NameLogin is the command name that authenticates a session.
	NameLogin = "login"
	// NameSecurities asks the gateway for its security list.
	NameSecurities = "securities"

	// separator matches the gateway's reference client, which emits ", "
	// between array elements.
	separator = ", "
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrEmpty indicates a command without a name.
	ErrEmpty = errors.New("otprobe/command: command is empty")
)

// --------------------------------------------------------------------------------
// Types

// Command is an ordered list of string fields; the first field is its name.
type Command []string

// Login builds the login command for the given credentials.
func Login(username, password string) Command {
	return Command{NameLogin, username, password}
}

// Securities builds the security list request.
func Securities() Command {
	return Command{NameSecurities}
}

// Name returns the command name, or "" for an empty command.
func (c Command) Name() string {
	if len(c) == 0 {
		return ""
	}

	return c[0]
}

// Args returns the fields following the name.
func (c Command) Args() []string {
	if len(c) < 2 {
		return nil
	}

	return c[1:]
}

// Encode serializes the command as a JSON array of strings.
func (c Command) Encode() ([]byte, error) {
	if len(c) == 0 || c[0] == "" {
		return nil, ErrEmpty
	}

	var buf bytes.Buffer

	buf.WriteByte('[')

	for i, field := range c {
		if i > 0 {
			buf.WriteString(separator)
		}

		quoted, err := json.Marshal(field)
		if err != nil {
			return nil, fmt.Errorf("otprobe/command: encode field %d: %w", i, err)
		}

		buf.Write(quoted)
	}

	buf.WriteByte(']')

	return buf.Bytes(), nil
}

// String returns the encoded form, or a placeholder when encoding fails.
func (c Command) String() string {
	data, err := c.Encode()
	if err != nil {
		return "<invalid command>"
	}

	return string(data)
}

// --------------------------------------------------------------------------------
// Decoding

// Decode parses a single JSON array command.
func Decode(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("otprobe/command: decode: %w", err)
	}

	if len(c) == 0 || c[0] == "" {
		return nil, ErrEmpty
	}

	return c, nil
}

// ParseList parses a JSON array of commands, e.g. [["securities"]].
//
// A blank string yields no commands.
func ParseList(s string) ([]Command, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var list []Command
	if err := json.UnmarshalString(s, &list); err != nil {
		return nil, fmt.Errorf("otprobe/command: parse list: %w", err)
	}

	for i, c := range list {
		if len(c) == 0 || c[0] == "" {
			return nil, fmt.Errorf("otprobe/command: entry %d: %w", i, ErrEmpty)
		}
	}

	return list, nil
}
