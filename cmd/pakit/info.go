package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lunaros/pakit/pkg/bundle"
	"github.com/lunaros/pakit/pkg/format"
)

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "display package information without installing",
		ArgsUsage: "<package-path>",
		Action:    infoAction,
	}
}

func infoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: pakit info <package-path>")
	}
	pkgPath := c.Args().Get(0)

	if err := format.Check(pkgPath); err != nil {
		return err
	}

	b, err := bundle.Open(pkgPath)
	if err != nil {
		return err
	}
	defer b.Close()

	var total int64
	files := 0
	for _, e := range b.Files {
		if !e.IsDir() {
			total += e.Size
			files++
		}
	}

	fmt.Printf("Name:         %s\n", b.Meta.Name)
	if b.Meta.Version != "" {
		fmt.Printf("Version:      %s\n", b.Meta.Version)
	}
	if b.Meta.Architecture != "" {
		fmt.Printf("Architecture: %s\n", b.Meta.Architecture)
	}
	if b.Meta.License != "" {
		fmt.Printf("License:      %s\n", b.Meta.License)
	}
	if b.Meta.Packager != "" {
		fmt.Printf("Packager:     %s\n", b.Meta.Packager)
	}
	fmt.Printf(
		"Files:        %d (%s declared)\n",
		files, humanBytes(total),
	)
	if b.Meta.Summary != "" {
		fmt.Printf("Summary:      %s\n", b.Meta.Summary)
	}
	if b.Meta.Description != "" {
		fmt.Printf("\n%s\n", b.Meta.Description)
	}
	return nil
}
