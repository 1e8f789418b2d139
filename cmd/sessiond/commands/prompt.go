package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompter collects the email address and one-time code from the
// terminal for the interactive login flow.
type terminalPrompter struct{}

func (p *terminalPrompter) PromptEmail(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Print("Email address: ")
	return readLine()
}

func (p *terminalPrompter) PromptCode(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Printf("A verification code was sent to %s.\nCode: ", email)

	// Codes are short-lived credentials; don't echo them when we can avoid it.
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		code, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(code)), nil
	}
	return readLine()
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
