package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/edvin/workspace-migrate/internal/config"
)

var ErrInvalidChoice = errors.New("invalid choice")

// Mode selects which halves of a migration run.
type Mode int

const (
	ModeExtract Mode = iota + 1
	ModeReplay
	ModeBoth
)

func (m Mode) Extracts() bool { return m == ModeExtract || m == ModeBoth }
func (m Mode) Replays() bool  { return m == ModeReplay || m == ModeBoth }

// Role is the configuration role the mode needs validated.
func (m Mode) Role() string {
	switch m {
	case ModeExtract:
		return config.RoleExtract
	case ModeReplay:
		return config.RoleReplay
	default:
		return config.RoleMigrate
	}
}

func (m Mode) String() string {
	switch m {
	case ModeExtract:
		return "extract"
	case ModeReplay:
		return "replay"
	case ModeBoth:
		return "extract+replay"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "1", "2" or "3", ignoring surrounding whitespace.
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return ModeExtract, nil
	case "2":
		return ModeReplay, nil
	case "3":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidChoice, strings.TrimSpace(s))
	}
}

// PromptMode prints the menu to out and reads one line from in.
func PromptMode(in io.Reader, out io.Writer) (Mode, error) {
	fmt.Fprintln(out, "Databricks Environment Migration Tool")
	fmt.Fprintln(out, "1. Extract environment from source workspace")
	fmt.Fprintln(out, "2. Create environment in target workspace")
	fmt.Fprintln(out, "3. Do both")
	fmt.Fprint(out, "Choose an option (1-3): ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, fmt.Errorf("%w: no input", ErrInvalidChoice)
	}
	return ParseMode(line)
}
