package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Interactive input helpers, swapped in tests.
var (
	getSimpleText  = GetSimpleText
	getPassword    = GetPassword
	getNewPassword = GetNewPassword
)

var errCancelled = errors.New("cancelled")

// Register prompts for the account fields and creates the account. The
// password is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	firstName, err := getSimpleText(a.reader, "Enter first name", a.out)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name", a.out)
	if err != nil {
		return err
	}

	password, err := getNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	acc, err := a.client.Register(ctx, client.Registration{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		if errors.Is(err, client.ErrIncomplete) {
			fmt.Fprintln(a.out, "Account stored, but the identity provider did not accept it. Contact support before retrying.")
		}
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %s)\n", acc.Email, acc.ID)
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", s.Email)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.client.WhoAmI(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (id %s)\n", s.Email, s.UserID)
	if !s.AccessExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "access token valid until %s\n", s.AccessExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Delete removes the logged-in account after re-entering the password and
// typing "yes".
func (a *App) Delete(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	answer, err := getSimpleText(a.reader, "Delete this account permanently? Type 'yes' to confirm", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		return errCancelled
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.DeleteAccount(ctx, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account deleted")
	return nil
}

// Logout forgets the session tokens.
func (a *App) Logout(ctx context.Context) error {
	a.client.Logout()
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
