package main

import (
	"context"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mkd/config"
	"mkd/convert"
	"mkd/state"
)

const renderHelp = `
SOURCE:
    markdown to render, one of:
        file:                      "[path_to_file]file.md"
        directory:                 "[path_to_directory]directory" - every source under it, symbolic links are not followed
        file in archive:           "[path_to_archive]archive.zip[path_in_archive]/file.md"
        directory in archive:      "[path_to_archive]archive.zip[path_in_archive]" - every source under archive path
        "-":                       single document from STDIN, result goes to STDOUT

    Only files with configured extensions (render.extensions) are considered,
    archives inside archives are not looked into.

DESTINATION:
    directory for results, names come from source names or
    render.output_name_template, if absent - current working directory
`

const dumpConfigHelp = `
DESTINATION:
    file name to write configuration to, if absent - STDOUT

Writes "active" configuration: defaults merged with values from configuration
file. Use --default to see configuration embedded into the program.
`

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:         "render",
		Usage:        "Renders markdown file(s) to HTML",
		OnUsageError: usageErrorHandler,
		Action:       convert.Run,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "nodirs", Aliases: []string{"nd"}, Usage: "when producing output do not keep input directory structure"},
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
			&cli.BoolFlag{Name: "offline", Usage: "never contact generation service or fetch includes, directives render as errors"},
			&cli.BoolFlag{Name: "standalone", Aliases: []string{"s"}, Usage: "produce complete HTML pages with embedded stylesheet"},
			&cli.BoolFlag{Name: "save", Usage: "save rendered documents to the library"},
			&cli.StringFlag{Name: "owner", Usage: "owner `ADDRESS` of documents saved to the library"},
			&cli.StringFlag{Name: "charset",
				Usage: "Force `ENCODING` for ALL non UTF-8 sources and file names in processed archives (see IANA.org for character set names)"},
		},
		ArgsUsage:          "SOURCE [DESTINATION]",
		CustomHelpTemplate: cli.CommandHelpTemplate + renderHelp,
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:         "inspect",
		Usage:        "Shows declared symbols, includes and generation directives of a document",
		OnUsageError: usageErrorHandler,
		Action:       convert.Inspect,
		ArgsUsage:    "SOURCE",
	}
}

func dumpConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "dumpconfig",
		Usage: "Dumps either default or actual configuration (YAML)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
		},
		OnUsageError:       usageErrorHandler,
		Action:             outputConfiguration,
		ArgsUsage:          "DESTINATION",
		CustomHelpTemplate: cli.CommandHelpTemplate + dumpConfigHelp,
	}
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	kind, dump := "actual", func() ([]byte, error) { return config.Dump(env.Cfg) }
	if cmd.Bool("default") {
		kind, dump = "default", config.Prepare
	}
	data, err := dump()
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	var out io.Writer = os.Stdout
	name := cmd.Args().Get(0)
	if name != "" {
		f, e := os.Create(name)
		if e != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", name, e)
		}
		defer func() {
			err = multierr.Append(err, f.Close())
		}()
		out = f
	} else {
		name = "STDOUT"
	}
	env.Log.Info("Outputting configuration", zap.String("state", kind), zap.String("file", name))

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
