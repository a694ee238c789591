package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
)

type fakeClient struct {
	loggedIn bool

	reg      client.Registration
	regPass  string
	regErr   error
	regAcc   *client.Account
	login    string
	loginPW  string
	loginErr error
	who      *client.Session
	whoErr   error
	delPW    string
	delErr   error
	pingErr  error
	pings    int
	closed   bool
}

func (f *fakeClient) Close() error { f.closed = true; return nil }

func (f *fakeClient) Register(_ context.Context, r client.Registration) (*client.Account, error) {
	f.reg = r
	f.regPass = string(r.Password)
	if f.regErr != nil {
		return nil, f.regErr
	}
	if f.regAcc != nil {
		return f.regAcc, nil
	}
	return &client.Account{ID: "u-1", Email: r.Email}, nil
}

func (f *fakeClient) Login(_ context.Context, email string, password []byte) (*client.Session, error) {
	f.login, f.loginPW = email, string(password)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.loggedIn = true
	return &client.Session{UserID: "u-1", Email: email}, nil
}

func (f *fakeClient) WhoAmI(context.Context) (*client.Session, error) {
	if f.whoErr != nil {
		return nil, f.whoErr
	}
	return f.who, nil
}

func (f *fakeClient) DeleteAccount(_ context.Context, password []byte) error {
	f.delPW = string(password)
	if f.delErr != nil {
		return f.delErr
	}
	f.loggedIn = false
	return nil
}

func (f *fakeClient) Logout()        { f.loggedIn = false }
func (f *fakeClient) LoggedIn() bool { return f.loggedIn }

func (f *fakeClient) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

// stubInputs feeds texts to getSimpleText and passwords to getPassword in
// order. The returned slices are the buffers handed out, so tests can check
// they were wiped.
func stubInputs(t *testing.T, texts []string, passwords ...string) *[][]byte {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})

	var handed [][]byte
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", io.EOF
		}
		s := texts[0]
		texts = texts[1:]
		return s, nil
	}
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.EOF
		}
		pw := []byte(passwords[0])
		passwords = passwords[1:]
		handed = append(handed, pw)
		return pw, nil
	}
	return &handed
}

func newTestApp(f *fakeClient, out io.Writer) *App {
	return &App{client: f, out: out, reader: bufio.NewReader(strings.NewReader(""))}
}
