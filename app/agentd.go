// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/hpe-storage/dbrefresh/hostagent"
	log "github.com/hpe-storage/dbrefresh/logger"
)

const (
	FlagAgentListenPort = "port"
	FlagAgentConfig     = "config"
)

// AgentdCmd returns the command that runs the per-host disk agent
func AgentdCmd() cli.Command {
	return cli.Command{
		Name:  "agentd",
		Usage: "run the disk agent on a database host",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  FlagAgentListenPort,
				Usage: "TCP port to listen on",
				Value: hostagent.DefaultPort,
			},
			cli.StringFlag{
				Name:  FlagAgentConfig,
				Usage: "path to the agent config file, watched for log level changes",
			},
		},
		Action: func(c *cli.Context) {
			if err := runAgentd(c); err != nil {
				log.Errorf("agent failed: %v", err)
				fmt.Fprintf(os.Stderr, "agent failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func runAgentd(c *cli.Context) error {
	port := c.Int(FlagAgentListenPort)
	if err := hostagent.Run(port, c.String(FlagAgentConfig)); err != nil {
		return err
	}
	log.Infof("disk agent listening on port %v", port)

	// Serve until interrupted
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("received %v, stopping disk agent", sig)
	return hostagent.Stop()
}
