package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	// INSPECT_ROOM restricts the message dump to one room
	Room string `envconfig:"INSPECT_ROOM"`
	// INSPECT_MAX_CONTENT truncates message content in the table
	MaxContent int  `envconfig:"INSPECT_MAX_CONTENT" default:"60"`
	Colours    bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

// inspect prints the rooms and messages stored by a relay.
// It opens the database read-only and can run next to a live relay.
func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fail(config, "config error: %v", err)
	}
	color.Enable = config.Colours

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		fail(config, "error while opening badger: %v", err)
	}
	defer db.Close()

	what := "all"
	if len(os.Args) > 1 {
		what = strings.ToLower(os.Args[1])
	}

	inspector := NewInspector(db, os.Stdout, config.MaxContent)
	switch what {
	case "rooms":
		err = inspector.Rooms()
	case "messages":
		err = inspector.Messages(config.Room)
	case "all":
		if err = inspector.Rooms(); err == nil {
			err = inspector.Messages(config.Room)
		}
	default:
		err = fmt.Errorf("unknown target %q, expected rooms, messages or all", what)
	}
	if err != nil {
		_ = db.Close()
		fail(config, "%v", err)
	}
}

func fail(config Config, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if config.Colours {
		message = color.New(color.FgRed, color.OpBold).Render(message)
	}
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
