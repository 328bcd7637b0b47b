package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	humanize "github.com/dustin/go-humanize"

	"github.com/meigma/zipper"
	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/session"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dirStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	lockStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const timeLayout = "2006-01-02 15:04"

func (a *app) ls(ctx context.Context, path, cursor string) error {
	field, err := entry.ParseSortField(a.sortBy)
	if err != nil {
		return err
	}
	archive, err := a.load(ctx, path)
	if err != nil {
		return err
	}

	cursor = entry.CleanCursor(cursor)
	rows := archive.Display(cursor)
	entry.Sort(rows, field, a.desc)

	crumbs := []string{archive.Path}
	for _, c := range entry.Crumbs(cursor) {
		crumbs = append(crumbs, c.Name)
	}
	lipgloss.Fprintln(a.stdout, headerStyle.Render(strings.Join(crumbs, " › ")))

	width := len("NAME")
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Name)+1)
	}
	lipgloss.Fprintln(a.stdout, dimStyle.Render(fmt.Sprintf("%s  %10s  %10s  %s",
		pad("NAME", width), "SIZE", "PACKED", "MODIFIED")))
	for _, r := range rows {
		lipgloss.Fprintln(a.stdout, row(r, width))
	}
	return nil
}

func row(e entry.Entry, width int) string {
	name, size, packed := e.Name, "-", "-"
	style := lipgloss.NewStyle()
	switch {
	case e.IsDir:
		name += "/"
		style = dirStyle
	case e.Encrypted:
		style = lockStyle
	}
	if !e.IsDir {
		size = entry.FormatSize(e.Size)
		if e.CompressedSize > 0 {
			packed = entry.FormatSize(e.CompressedSize)
		}
	}
	return fmt.Sprintf("%s  %10s  %10s  %s",
		style.Render(pad(name, width)), size, packed, dimStyle.Render(e.Modified.Format(timeLayout)))
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func (a *app) tree(ctx context.Context, path string) error {
	archive, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	var total int64
	for _, e := range archive.Entries {
		if e.IsDir {
			lipgloss.Fprintln(a.stdout, dirStyle.Render(e.Path+"/"))
			continue
		}
		total += e.Size
		lipgloss.Fprintln(a.stdout, e.Path+"  "+dimStyle.Render(entry.FormatSize(e.Size)))
	}
	lipgloss.Fprintln(a.stdout, dimStyle.Render(fmt.Sprintf("%d entries, %s", len(archive.Entries), humanize.IBytes(uint64(total)))))
	return nil
}

func (a *app) find(ctx context.Context, path, name string) (*zipper.Archive, entry.Entry, error) {
	archive, err := a.load(ctx, path)
	if err != nil {
		return nil, entry.Entry{}, err
	}
	e, ok := archive.Find(name)
	if !ok {
		return nil, entry.Entry{}, fmt.Errorf("%w: %s", zipper.ErrEntryNotFound, name)
	}
	return archive, e, nil
}

func (a *app) open(ctx context.Context, path, name string) error {
	archive, e, err := a.find(ctx, path, name)
	if err != nil {
		return err
	}
	target, err := archive.Open(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, target)
	return nil
}

func (a *app) extract(ctx context.Context, path, name string) error {
	archive, e, err := a.find(ctx, path, name)
	if err != nil {
		return err
	}
	target, err := archive.Extract(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, target)
	return nil
}

// edit starts an editing session and serves commands from stdin until the
// session is updated or canceled. End of input cancels.
func (a *app) edit(ctx context.Context, path, name string) error {
	archive, e, err := a.find(ctx, path, name)
	if err != nil {
		return err
	}
	s, err := archive.Edit(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "editing %s in %s\n", e.Path, s.TempDir)

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.stdin)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-done:
				return
			}
		}
	}()

	for {
		fmt.Fprint(a.stdout, "> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return cancelEdit(archive, ctx.Err())
		case line, ok = <-lines:
		}
		if !ok {
			return cancelEdit(archive, nil)
		}

		switch line {
		case "":
		case "status":
			a.status(s)
		case "open":
			if _, err := archive.Edit(ctx, e); err != nil {
				fmt.Fprintf(a.stdout, "open failed: %v\n", err)
			}
		case "update":
			res, err := archive.Finish(ctx)
			if err != nil {
				fmt.Fprintf(a.stdout, "update failed: %v\n", err)
				continue
			}
			a.result(res)
			return nil
		case "cancel":
			return archive.Cancel(ctx)
		default:
			fmt.Fprintln(a.stdout, "commands: status, open, update, cancel")
		}
	}
}

func cancelEdit(archive *zipper.Archive, cause error) error {
	if err := archive.Cancel(context.Background()); err != nil && cause == nil {
		return err
	}
	return cause
}

func (a *app) status(s *session.Session) {
	changed := s.ChangedFiles()
	fmt.Fprintf(a.stdout, "%s, started %s, checked %s, %d changed\n",
		s.State(), humanize.Time(s.Created), humanize.Time(s.Watcher().LastPoll()), len(changed))
	for _, p := range changed {
		fmt.Fprintf(a.stdout, "  %s\n", p)
	}
}

func (a *app) result(res session.Result) {
	if res.Replaced {
		fmt.Fprintf(a.stdout, "updated: %d files, %s\n", res.Stats.Files, humanize.IBytes(uint64(res.Stats.Bytes)))
		return
	}
	fmt.Fprintf(a.stdout, "archive kept at %s\n", res.Kept)
}

func (a *app) changed(s *session.Session, paths []string) {
	a.logger.Info("files changed", "session", s.ID, "paths", paths)
}
