package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. *App implements it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Delete(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader and dispatches them to a until the
// user types "exit" or "quit" or input ends.
//
//	Not logged in: help, register, login, exit
//	Logged in:     help, whoami, delete, logout, exit
//
// Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gophauth %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}

		var cmdErr error

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, delete, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "delete":
			cmdErr = a.Delete(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
