package cmd

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"inkpad/ctlapi"
)

// CtlCommand talks to a running inkpad's control API.
type CtlCommand struct {
	Addr           string `help:"Control API address." default:"127.0.0.1:3242" env:"INKPAD_CTL_ADDR"`
	Password       string `help:"Control API password; defaults to the local key file." env:"INKPAD_CTL_PASSWORD"`
	PromptPassword bool   `short:"p" help:"Prompt for the password instead of reading the key file."`

	Ping    CtlPing    `cmd:"" help:"Check the server is alive."`
	Status  CtlStatus  `cmd:"" help:"Show print progress."`
	Abort   CtlAbort   `cmd:"" help:"Abort the current pass; the print restarts from cursor homing."`
	Restart CtlRestart `cmd:"" help:"Restart the whole sequence from controller pairing."`
}

func (c *CtlCommand) client() (*ctlapi.Client, error) {
	pwd := c.Password
	if c.PromptPassword {
		fmt.Fprint(os.Stderr, "password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		pwd = strings.TrimSpace(string(b))
	}
	if pwd == "" {
		pwd = readKeyFile()
	}
	if pwd == "" {
		return ctlapi.New(c.Addr), nil
	}
	return ctlapi.NewWithPassword(c.Addr, pwd), nil
}

type CtlPing struct{}

func (CtlPing) Run(c *CtlCommand) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	resp, err := client.Ping()
	if err != nil {
		return err
	}
	fmt.Printf("%s %s at %s\n", resp.Server, resp.Version, c.Addr)
	return nil
}

type CtlStatus struct{}

func (CtlStatus) Run(c *CtlCommand) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	resp, err := client.Status()
	if err != nil {
		return err
	}
	fmt.Printf("phase:    %s\n", resp.Phase)
	fmt.Printf("cursor:   (%d, %d)\n", resp.CursorX, resp.CursorY)
	fmt.Printf("sweep:    %d, command %d\n", resp.Sweep, resp.Command)
	fmt.Printf("progress: %.1f%%\n", resp.Progress*100)
	fmt.Printf("polls:    %d\n", resp.Polls)
	fmt.Printf("inked:    %d\n", resp.Inked)
	return nil
}

type CtlAbort struct{}

func (CtlAbort) Run(c *CtlCommand) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	resp, err := client.Abort()
	if err != nil {
		return err
	}
	fmt.Printf("abort latched (was %s)\n", resp.Phase)
	return nil
}

type CtlRestart struct{}

func (CtlRestart) Run(c *CtlCommand) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	resp, err := client.Restart()
	if err != nil {
		return err
	}
	fmt.Printf("restarted, phase %s\n", resp.Phase)
	return nil
}
