package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/golovatskygroup/mcp-atlassian/internal/cli"
	"github.com/golovatskygroup/mcp-atlassian/internal/config"
	"github.com/golovatskygroup/mcp-atlassian/internal/confluence"
	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/internal/server"
	"github.com/golovatskygroup/mcp-atlassian/internal/session"
)

func main() {
	cli.Execute(cli.Service{
		Name:  "confluence-mcp",
		Short: "MCP server for Confluence pages, spaces and attachments",
		Build: func(cfg config.Config, log zerolog.Logger) (server.Catalog, error) {
			sess := session.New(confluence.Connect(cfg, log))
			d, err := dispatch.New(confluence.Tools(afero.NewOsFs()), sess, log)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	})
}
