package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

type command func(ctx context.Context, args []string) error

// runREPL reads one command per line until EOF, "quit" or "exit".
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a *app, scanner *bufio.Scanner, out io.Writer) {
	commands := map[string]command{
		"register":   a.register,
		"login":      a.login,
		"me":         a.me,
		"rename":     a.rename,
		"logout":     a.logout,
		"logout-all": a.logoutAll,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		fmt.Fprintf(out, "authctl [%s]> ", a.status())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch name := parts[0]; name {
		case "help":
			fmt.Fprintln(out, "commands: register, login, me, rename, logout, logout-all, exit")
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			cmd, ok := commands[name]
			if !ok {
				fmt.Fprintln(out, "unknown command:", name)
				continue
			}
			if err := cmd(ctx, parts[1:]); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}
