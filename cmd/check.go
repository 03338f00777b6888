package cmd

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cottand/dropck/crate"
	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/cottand/dropck/internal/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check ./folder|file.yaml",
	Short:        "Check the Drop impls and drops of a crate",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	logLevel *int
	workers  *int
)

func init() {
	logLevel = CheckCmd.Flags().IntP("log-level", "l", int(slog.LevelWarn), "log level")
	workers = CheckCmd.Flags().IntP("workers", "j", 0, "how many checks run at once, 0 for no limit")
}

type dirFS interface {
	fs.ReadFileFS
	fs.ReadDirFS
}

func runCheck(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))

	target, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("could not get absolute path of target: %w", err)
	}

	stat, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("could not stat target: %w", err)
	}

	settings := crate.Settings{Workers: *workers}
	var folder string
	if stat.IsDir() {
		folder = target
	} else {
		folder = filepath.Dir(target)
		settings.Files = []string{filepath.Base(target)}
	}

	c, err := crate.Load(os.DirFS(folder).(dirFS), settings)
	if err != nil {
		return errors.Wrap(err, "could not load crate")
	}

	sess, err := c.Check(cmd.Context())
	out := cmd.OutOrStdout()
	for _, e := range sess.Errors() {
		_, _ = fmt.Fprintln(out, ilerr.FormatWithCodeAndSource(e, c))
	}
	for _, bug := range sess.DelayedBugs() {
		_, _ = fmt.Fprintln(out, ilerr.FormatBug(bug, c))
	}
	if errors.Is(err, ilerr.ErrReported) {
		return fmt.Errorf("%s", summary(sess))
	}
	return err
}

func summary(sess *ilerr.Session) string {
	sb := &strings.Builder{}
	n := sess.ErrorCount()
	if n == 1 {
		sb.WriteString("aborting due to 1 previous error")
	} else {
		fmt.Fprintf(sb, "aborting due to %d previous errors", n)
	}
	if bugs := len(sess.DelayedBugs()); bugs > 0 {
		fmt.Fprintf(sb, " and %d internal compiler errors", bugs)
	}
	return sb.String()
}
