// Package hsds drives an HSDS store through its command-line tools.
//
// hsls answers existence queries, hsload pushes a local file into a domain
// and h5clear repairs a file whose consistency flag was left set. Every tool
// call goes through a Runner, and failures are classified once, here, into
// typed errors the upload pipeline can branch on.
package hsds

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sioux/hsds-agent/internal/config"
	"github.com/sioux/hsds-agent/internal/logging"
)

type Client struct {
	conn   config.Connection
	tools  config.Tools
	suffix string
	runner Runner
	log    *slog.Logger
}

// NewClient builds a client. A nil runner means ExecRunner with the tools'
// timeout.
func NewClient(conn config.Connection, tools config.Tools, suffix string, runner Runner, logger *slog.Logger) *Client {
	if runner == nil {
		runner = ExecRunner{Timeout: tools.Timeout}
	}
	return &Client{
		conn:   conn,
		tools:  tools,
		suffix: suffix,
		runner: runner,
		log:    logging.Component(logger, "hsds"),
	}
}

// Domain maps a local file to its remote domain: root prefix plus base name.
func (c *Client) Domain(localPath string) string {
	return c.conn.RootPrefix + baseName(localPath)
}

// ListFiles returns the bare names of all data files under the root prefix.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	res, err := c.runner.Run(ctx, c.tools.List, c.authArgs(c.conn.RootPrefix)...)
	if err := classify(c.tools.List, res, err); err != nil {
		return nil, err
	}
	return ParseListing(res.Stdout, c.conn.RootPrefix, c.suffix), nil
}

// Exists reports whether domain already holds an uploaded file. Listing
// failures and empty listings count as "not there"; they are logged, never
// returned.
func (c *Client) Exists(ctx context.Context, domain string) bool {
	names, err := c.ListFiles(ctx)
	if err != nil {
		c.log.Warn("existence check failed, treating as absent", "domain", domain, "err", err)
		return false
	}
	if len(names) == 0 {
		c.log.Debug("empty listing", "prefix", c.conn.RootPrefix)
		return false
	}

	want := strings.TrimPrefix(domain, c.conn.RootPrefix)
	for _, name := range names {
		if name == want {
			return true
		}
	}
	return false
}

// Upload loads localPath into domain and blocks until hsload exits.
// Failures are *ToolError values classified as ErrInconsistentFile or
// ErrToolFailed.
func (c *Client) Upload(ctx context.Context, localPath, domain string) error {
	res, err := c.runner.Run(ctx, c.tools.Load, c.authArgs(localPath, domain)...)
	if err := classify(c.tools.Load, res, err); err != nil {
		var te *ToolError
		if errors.As(err, &te) && te.Output != "" {
			c.log.Debug("hsload output", "path", localPath, "output", te.Output)
		}
		return err
	}
	if res.Stdout != "" {
		c.log.Debug("hsload output", "path", localPath, "output", res.Stdout)
	}
	return nil
}

// Repair clears the superblock consistency flag of localPath in place.
func (c *Client) Repair(ctx context.Context, localPath string) error {
	res, err := c.runner.Run(ctx, c.tools.Clear, "-s", localPath)
	return classify(c.tools.Clear, res, err)
}

func (c *Client) authArgs(rest ...string) []string {
	args := []string{
		"-e", c.conn.Endpoint,
		"-u", c.conn.Username,
		"-p", c.conn.Password,
	}
	return append(args, rest...)
}

// baseName handles both separators so Windows paths map to the same domain
// regardless of the host the agent was built for.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return filepath.Base(p)
}
