package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/lunaros/pakit/pkg/format"
	"github.com/lunaros/pakit/pkg/install"
)

func installCmd() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "install a package bundle",
		ArgsUsage: "<package-path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "overwrite existing target paths",
			},
			&cli.StringFlag{
				Name:  "root",
				Value: "/",
				Usage: "target root directory",
			},
			&cli.StringFlag{
				Name:  "staging",
				Usage: "staging base directory (default: system temp)",
			},
			&cli.BoolFlag{
				Name: "permissive",
				Usage: "report hash mismatches as warnings " +
					"instead of aborting",
			},
		},
		Action: installAction,
	}
}

func installAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: pakit install <package-path>")
	}
	pkgPath := c.Args().Get(0)

	if err := format.Check(pkgPath); err != nil {
		return err
	}

	opts := install.Options{
		TargetRoot:  c.String("root"),
		StagingRoot: c.String("staging"),
		Force:       c.Bool("force"),
	}
	if c.Bool("permissive") {
		opts.Policy = install.Permissive
	}

	rep, err := install.Run(c.Context, pkgPath, opts)
	if err != nil {
		if rep != nil && rep.Package != nil {
			return fmt.Errorf(
				"install %s (%s): %w",
				rep.Package.Name, rep.Stage, err,
			)
		}
		return err
	}

	slog.Debug("install finished",
		"extracted", rep.Extracted,
		"installed", rep.Installed,
		"stage", rep.Stage.String(),
	)
	for _, w := range rep.Warnings {
		slog.Warn(w)
	}
	fmt.Printf(
		"Installed %s %s (%d files)\n",
		rep.Package.Name, rep.Package.Version, rep.Installed,
	)
	return nil
}
