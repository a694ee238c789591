package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := ""
	if a.isLoggedIn() {
		s = "logged in "
	}
	if m := a.mode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root runs the interactive session until the user exits or input ends.
func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "Welcome to gophauth CLI (type 'help' for commands)")

	a.checkOnline(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.config != nil && a.config.OnlineCheckInterval > 0 {
		go a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
