package cmd

import "fmt"

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Println("inkpad " + Version)
	return nil
}
