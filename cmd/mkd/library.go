package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mkd/library"
	"mkd/state"
)

func ownerFlag() cli.Flag {
	return &cli.StringFlag{Name: "owner", Usage: "owner `ADDRESS` of the documents"}
}

func libraryCommand() *cli.Command {
	return &cli.Command{
		Name:         "library",
		Usage:        "Manages documents saved by render --save",
		OnUsageError: usageErrorHandler,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Lists documents, newest first",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.BoolFlag{Name: "shared", Usage: "list only shared documents"},
				},
				OnUsageError: usageErrorHandler,
				Action:       withLibrary(listDocuments),
			},
			{
				Name:         "show",
				Usage:        "Outputs document source or rendered HTML",
				Flags:        []cli.Flag{&cli.BoolFlag{Name: "html", Usage: "output rendered HTML instead of source"}},
				ArgsUsage:    "ID",
				OnUsageError: usageErrorHandler,
				Action:       withLibrary(showDocument),
			},
			{
				Name:         "share",
				Usage:        "Toggles document sharing",
				Flags:        []cli.Flag{ownerFlag()},
				ArgsUsage:    "ID",
				OnUsageError: usageErrorHandler,
				Action:       withLibrary(shareDocument),
			},
			{
				Name:         "delete",
				Usage:        "Deletes document",
				Flags:        []cli.Flag{ownerFlag()},
				ArgsUsage:    "ID",
				OnUsageError: usageErrorHandler,
				Action:       withLibrary(deleteDocument),
			},
			{
				Name:         "purge",
				Usage:        "Deletes all documents",
				Flags:        []cli.Flag{&cli.BoolFlag{Name: "yes", Usage: "confirm removal of every document"}},
				OnUsageError: usageErrorHandler,
				Action:       withLibrary(purgeDocuments),
			},
		},
	}
}

type libraryAction func(ctx context.Context, cmd *cli.Command, lib *library.Library, log *zap.Logger) error

// withLibrary opens configured library for the duration of the action.
func withLibrary(action libraryAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		env := state.EnvFromContext(ctx)
		log := env.Log.Named("library")

		path := env.Cfg.Library.Path
		if path == "" {
			if path, err = library.DefaultPath(); err != nil {
				return err
			}
		}
		lib, err := library.Open(path, log)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, lib.Close())
		}()
		return action(ctx, cmd, lib, log)
	}
}

func documentID(cmd *cli.Command) (string, error) {
	id := cmd.Args().Get(0)
	if id == "" {
		return "", errors.New("no document id has been specified")
	}
	return id, nil
}

func ownerOf(cmd *cli.Command) (string, error) {
	owner := cmd.String("owner")
	if owner == "" {
		return "", errors.New("document owner has not been specified, use --owner")
	}
	return owner, nil
}

func writeDocuments(w io.Writer, docs []library.Document) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tOWNER\tSHARED\tTITLE")
	for _, d := range docs {
		shared := "-"
		if d.Shared {
			shared = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Created.Local().Format(time.DateTime), d.Owner, shared, d.Title)
	}
	return tw.Flush()
}

func listDocuments(ctx context.Context, cmd *cli.Command, lib *library.Library, log *zap.Logger) error {
	var (
		docs []library.Document
		err  error
	)
	switch owner := cmd.String("owner"); {
	case cmd.Bool("shared"):
		docs, err = lib.ListShared(ctx)
	case owner != "":
		docs, err = lib.ListByOwner(ctx, owner)
	default:
		docs, err = lib.List(ctx)
	}
	if err != nil {
		return err
	}
	log.Debug("Listing documents", zap.Int("count", len(docs)))
	return writeDocuments(os.Stdout, docs)
}

func showDocument(ctx context.Context, cmd *cli.Command, lib *library.Library, _ *zap.Logger) error {
	id, err := documentID(cmd)
	if err != nil {
		return err
	}
	doc, err := lib.Get(ctx, id)
	if err != nil {
		return err
	}
	out := doc.Content
	if cmd.Bool("html") {
		out = doc.HTML
	}
	_, err = io.WriteString(os.Stdout, out)
	return err
}

func shareDocument(ctx context.Context, cmd *cli.Command, lib *library.Library, log *zap.Logger) error {
	id, err := documentID(cmd)
	if err != nil {
		return err
	}
	owner, err := ownerOf(cmd)
	if err != nil {
		return err
	}
	shared, err := lib.ToggleShare(ctx, id, owner)
	if err != nil {
		return err
	}
	log.Info("Document sharing changed", zap.String("id", id), zap.Bool("shared", shared))
	return nil
}

func deleteDocument(ctx context.Context, cmd *cli.Command, lib *library.Library, log *zap.Logger) error {
	id, err := documentID(cmd)
	if err != nil {
		return err
	}
	owner, err := ownerOf(cmd)
	if err != nil {
		return err
	}
	if err := lib.Delete(ctx, id, owner); err != nil {
		return err
	}
	log.Info("Document deleted", zap.String("id", id))
	return nil
}

func purgeDocuments(ctx context.Context, cmd *cli.Command, lib *library.Library, log *zap.Logger) error {
	if !cmd.Bool("yes") {
		return errors.New("refusing to delete every document without --yes")
	}
	n, err := lib.DeleteAll(ctx)
	if err != nil {
		return err
	}
	log.Info("Library purged", zap.Int("deleted", n))
	return nil
}
