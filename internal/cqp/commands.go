package cqp

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cqb/internal/errors"
	"cqb/internal/spans"
)

// SetOption pushes one processing option to the engine
func (c *Client) SetOption(name, value string) {
	_, _ = c.Exec(fmt.Sprintf("set %s %s;", name, value))
}

// Activate makes a corpus or named result set the target of subsequent
// queries, scoping them to its spans
func (c *Client) Activate(name string) error {
	_, err := c.Exec(name + ";")
	if err != nil {
		return err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return errors.Newf(errors.Engine, "cannot activate %s: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}

// SubcorpusSize returns the number of matches in a named result set
func (c *Client) SubcorpusSize(name string) (int, error) {
	out, err := c.Exec("size " + name + ";")
	if err != nil {
		return 0, err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return 0, errors.Newf(errors.Engine, "size of %s: %s", name, strings.Join(msgs, "; "))
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, errors.New(errors.Parse, fmt.Sprintf("size of %s is not an integer: %q", name, strings.TrimSpace(out)), convErr)
	}
	return n, nil
}

// SaveSubcorpus persists a named result set to the corpus's binary storage
func (c *Client) SaveSubcorpus(name string) error {
	_, err := c.Exec("save " + name + ";")
	if err != nil {
		return err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return errors.Newf(errors.Engine, "cannot save %s: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}

// DefineMacro loads macro definitions from a file
func (c *Client) DefineMacro(path string) error {
	_, err := c.Exec(fmt.Sprintf(`define macro < "%s";`, path))
	if err != nil {
		return err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return errors.Newf(errors.Engine, "macro definition failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DefineWordList loads a word list from a file under the given list name
func (c *Client) DefineWordList(name, path string) error {
	_, err := c.Exec(fmt.Sprintf(`define $%s < "%s";`, name, path))
	if err != nil {
		return err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return errors.Newf(errors.Engine, "word list definition failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// QueryLocked wraps a raw query in an acquire/execute/release protocol with
// a random one-time key, so a failing query's partial state cannot leak
// into later calls. Error text from any of the three steps is aggregated.
func (c *Client) QueryLocked(query string) error {
	key := uuid.New().ID()

	var all []string
	step := func(cmd string) error {
		_, err := c.Exec(cmd)
		if err != nil {
			return err
		}
		all = append(all, c.TakeEngineErrors()...)
		return nil
	}

	if err := step(fmt.Sprintf("set QueryLock %d;", key)); err != nil {
		return err
	}
	if err := step(query); err != nil {
		return err
	}
	if err := step(fmt.Sprintf("unlock %d;", key)); err != nil {
		return err
	}

	if len(all) > 0 {
		return errors.Newf(errors.Engine, "query failed: %s", strings.Join(all, "; "))
	}
	return nil
}

// Dump retrieves a named result set as raw dump rows. A negative first
// dumps the whole set; otherwise only rows first..last are returned.
func (c *Client) Dump(name string, first, last int) ([]spans.DumpRow, error) {
	cmd := "dump " + name + ";"
	if first >= 0 {
		cmd = fmt.Sprintf("dump %s %d %d;", name, first, last)
	}
	out, err := c.Exec(cmd)
	if err != nil {
		return nil, err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return nil, errors.Newf(errors.Engine, "dump of %s failed: %s", name, strings.Join(msgs, "; "))
	}
	return spans.ParseDump(out)
}

// Undump defines a named result set equal to the given rows. The table is
// fed through a temporary side-channel file in the engine's undump format.
// The engine rejects inconsistent tables (unsorted, overlapping, or
// match > matchend); that surfaces as a non-fatal error here, not a dead
// client, so callers must check the result rather than assume success.
func (c *Client) Undump(name string, rows []spans.DumpRow, withAnchors bool) error {
	f, err := os.CreateTemp("", "cqb-undump-*.tsv")
	if err != nil {
		return errors.New(errors.Internal, "cannot create undump temp file", err)
	}
	defer os.Remove(f.Name())

	if err := spans.WriteUndump(f, rows, withAnchors); err != nil {
		f.Close()
		return errors.New(errors.Internal, "cannot write undump temp file", err)
	}
	if err := f.Close(); err != nil {
		return errors.New(errors.Internal, "cannot close undump temp file", err)
	}

	cmd := fmt.Sprintf(`undump %s < "%s";`, name, f.Name())
	if withAnchors {
		cmd = fmt.Sprintf(`undump %s with target keyword < "%s";`, name, f.Name())
	}
	if _, err := c.Exec(cmd); err != nil {
		return err
	}
	if msgs := c.TakeEngineErrors(); len(msgs) > 0 {
		return errors.Newf(errors.Engine, "undump into %s rejected: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}
