// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/hpe-storage/dbrefresh/app"
	log "github.com/hpe-storage/dbrefresh/logger"
)

var VERSION = "dev"

const logFileName = "dbrefresh.log"

func cmdNotFound(c *cli.Context, command string) {
	panic(fmt.Errorf("unrecognized command: %s", command))
}

func onUsageError(c *cli.Context, err error, isSubcommand bool) error {
	panic(fmt.Errorf("usage error, please check your command"))
}

func main() {
	a := cli.NewApp()
	a.Version = VERSION
	a.Usage = "database refresh via storage array volume overwrite"

	a.Before = func(c *cli.Context) error {
		params := &log.LogParams{Level: c.GlobalString("log-level")}
		if err, _ := log.InitLogging(logFileName, params, true, false); err != nil {
			return err
		}
		return nil
	}

	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "log-level, l",
			Usage:  "logging level (trace, debug, info, warn, error)",
			Value:  "info",
			EnvVar: "DBREFRESH_LOG_LEVEL",
		},
	}
	a.Commands = []cli.Command{
		app.RefreshCmd(),
		app.AgentdCmd(),
	}
	a.CommandNotFound = cmdNotFound
	a.OnUsageError = onUsageError

	if err := a.Run(os.Args); err != nil {
		log.Fatalf("critical error: %v", err)
	}
}
