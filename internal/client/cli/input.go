package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/term"
)

// readPassword reads from the terminal without echo; tests replace it.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// GetSimpleText prints prompt followed by "> " and reads one trimmed line.
// A final line without a newline is still returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword prints prompt and reads a password from stdin without echo.
// The caller wipes the returned slice.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetNewPassword asks for a password twice. The confirmation is always
// wiped; on mismatch both are.
func GetNewPassword(w io.Writer) ([]byte, error) {
	pw, err := getPassword(w, "Enter password")
	if err != nil {
		return nil, err
	}
	confirm, err := getPassword(w, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}
