package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"mkd/css"
	"mkd/library"
	"mkd/markup"
	"mkd/state"
	"mkd/utils/debug"
)

// Inspect is "inspect" command action: renders single source without
// generation and reports what was declared and referenced in it.
func Inspect(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("inspect")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}

	var in io.Reader
	if src == stdinName {
		in = os.Stdin
	} else {
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("unable to open source: %w", err)
		}
		defer f.Close()
		in = f
	}
	br := bufio.NewReader(in)
	head, _ := br.Peek(4)
	data, err := io.ReadAll(selectReader(br, detectUTF(head)))
	if err != nil {
		return fmt.Errorf("unable to read source: %w", err)
	}
	if out, forced := decodeLegacy(data, env.CodePage); forced {
		data = out
	}

	r := markup.New(markup.WithEmoji(env.Cfg.Render.Emoji), markup.WithLogger(log))
	res, err := r.Render(ctx, string(data))
	if err != nil {
		return err
	}

	report := inspectReport(res, string(data), css.NewParser(log).Parse(env.DefaultStyle, "stylesheet"))
	log.Debug("Inspection completed", zap.String("source", src), zap.Int("size", len(data)))

	_, err = io.WriteString(os.Stdout, report)
	return err
}

func inspectReport(res *markup.Result, source string, sheet *css.Stylesheet) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "title: %s", library.Title(res.HTML, source))
	tw.Line(0, "generation directives: %d", len(res.Generated))
	if urls := markup.Includes(res.HTML); len(urls) > 0 {
		tw.Line(0, "includes: %d", len(urls))
		for _, u := range urls {
			tw.Line(1, "%s", u)
		}
	}
	if missing := sheet.Missing(css.UsedClasses(res.HTML)); len(missing) > 0 {
		tw.Line(0, "undefined classes: %s", strings.Join(missing, ", "))
	}
	return tw.String() + res.Symbols.Dump()
}
