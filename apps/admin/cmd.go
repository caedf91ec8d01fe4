package main

import (
	"database/sql"
	"errors"
	"fmt"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db *sql.DB
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run DB migrations (up, down, status, create NAME sql, ...)")
	fmt.Println("  preview -from DATE -to DATE -weekdays N[,N...] -start HH:MM -end HH:MM - preview a generation without creating anything")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "preview":
		return cli.preview(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
