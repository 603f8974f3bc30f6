package main

import (
	"github.com/rs/zerolog"

	"github.com/golovatskygroup/mcp-atlassian/internal/cli"
	"github.com/golovatskygroup/mcp-atlassian/internal/config"
	"github.com/golovatskygroup/mcp-atlassian/internal/dispatch"
	"github.com/golovatskygroup/mcp-atlassian/internal/jira"
	"github.com/golovatskygroup/mcp-atlassian/internal/server"
	"github.com/golovatskygroup/mcp-atlassian/internal/session"
)

func main() {
	cli.Execute(cli.Service{
		Name:  "jira-mcp",
		Short: "MCP server for Jira issues, comments and transitions",
		Build: func(cfg config.Config, log zerolog.Logger) (server.Catalog, error) {
			d, err := dispatch.New(jira.Tools(), session.New(jira.Connect(cfg, log)), log)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	})
}
