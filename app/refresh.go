// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/hpe-storage/dbrefresh/arrayprovider"
	"github.com/hpe-storage/dbrefresh/arrayprovider/restprovider"
	"github.com/hpe-storage/dbrefresh/dbservice/etcd"
	"github.com/hpe-storage/dbrefresh/hostagent"
	"github.com/hpe-storage/dbrefresh/hostagent/handler"
	"github.com/hpe-storage/dbrefresh/hostagentclient"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/refresh"
	"github.com/hpe-storage/dbrefresh/sqlengine"
)

const (
	FlagDatabase      = "database"
	FlagSource        = "source-instance"
	FlagDestination   = "dest-instance"
	FlagArray         = "array"
	FlagArrayConfig   = "array-config"
	FlagDBUsername    = "db-username"
	FlagDBPassword    = "db-password"
	FlagAgentPort     = "agent-port"
	FlagAgentToken    = "agent-token"
	FlagAgentTimeout  = "agent-timeout"
	FlagLockEndpoint  = "lock-endpoints"
	FlagSkipPreflight = "skip-preflight"
)

// RefreshCmd returns the command that runs one full database refresh
func RefreshCmd() cli.Command {
	return cli.Command{
		Name:  "refresh",
		Usage: "refresh a destination database from a source database's storage volume",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  FlagDatabase,
				Usage: "name of the database to refresh",
			},
			cli.StringFlag{
				Name:  FlagSource,
				Usage: "instance hosting the source database",
			},
			cli.StringFlag{
				Name:  FlagDestination,
				Usage: "instance hosting the destination database",
			},
			cli.StringFlag{
				Name:  FlagArray,
				Usage: "storage array name or management endpoint, looked up in the array config",
			},
			cli.StringFlag{
				Name:  FlagArrayConfig,
				Usage: "path to the YAML array configuration file",
				Value: "arrays.yaml",
			},
			cli.StringFlag{
				Name:   FlagDBUsername,
				Usage:  "SQL login, empty for integrated authentication",
				EnvVar: "DBREFRESH_DB_USERNAME",
			},
			cli.StringFlag{
				Name:   FlagDBPassword,
				Usage:  "SQL login password",
				EnvVar: "DBREFRESH_DB_PASSWORD",
			},
			cli.IntFlag{
				Name:  FlagAgentPort,
				Usage: "port the disk agents listen on",
				Value: hostagent.DefaultPort,
			},
			cli.StringFlag{
				Name:   FlagAgentToken,
				Usage:  "access key shared with the disk agents",
				EnvVar: handler.AgentTokenEnv,
			},
			cli.DurationFlag{
				Name:  FlagAgentTimeout,
				Usage: "per-request timeout for disk agent calls",
				Value: 60 * time.Second,
			},
			cli.StringSliceFlag{
				Name:  FlagLockEndpoint,
				Usage: "etcd endpoints for the refresh lock, omit to skip locking",
			},
			cli.BoolFlag{
				Name:  FlagSkipPreflight,
				Usage: "skip the ping reachability check",
			},
		},
		Action: func(c *cli.Context) {
			if err := runRefresh(c); err != nil {
				log.Errorf("refresh failed: %v", err)
				fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func runRefresh(c *cli.Context) error {
	request := &model.RefreshRequest{
		DatabaseName:        c.String(FlagDatabase),
		SourceInstance:      c.String(FlagSource),
		DestinationInstance: c.String(FlagDestination),
		ArrayEndpoint:       c.String(FlagArray),
	}
	if request.DatabaseName == "" {
		return fmt.Errorf("require %v", FlagDatabase)
	}
	if request.SourceInstance == "" {
		return fmt.Errorf("require %v", FlagSource)
	}
	if request.DestinationInstance == "" {
		return fmt.Errorf("require %v", FlagDestination)
	}
	if request.ArrayEndpoint == "" {
		return fmt.Errorf("require %v", FlagArray)
	}

	credentials, err := loadArrayCredentials(c.String(FlagArrayConfig), request.ArrayEndpoint)
	if err != nil {
		return err
	}

	// Serialize refreshes of the same destination when a lock cluster is given
	if endpoints := c.StringSlice(FlagLockEndpoint); len(endpoints) > 0 {
		release, err := acquireRefreshLock(endpoints, request)
		if err != nil {
			return err
		}
		defer release()
	}

	if !c.Bool(FlagSkipPreflight) {
		refresh.Preflight(credentials.ArrayIP, request.SourceInstance, request.DestinationInstance)
	}

	orchestrator := &refresh.Orchestrator{
		Engine:   &engineAdapter{engine: sqlengine.NewEngine(c.String(FlagDBUsername), c.String(FlagDBPassword))},
		Executor: hostagentclient.NewExecutor(c.Int(FlagAgentPort), c.String(FlagAgentToken), c.Duration(FlagAgentTimeout)),
		Connector: refresh.ArrayConnectorFunc(func(credentials *arrayprovider.Credentials) (arrayprovider.StorageProvider, error) {
			return restprovider.NewArrayStorageProvider(credentials)
		}),
		Credentials: credentials,
		Events:      printEvent,
	}

	report := orchestrator.Run(context.Background(), request)
	printReport(report)
	if report.Unsafe {
		return errors.Wrapf(report.Err,
			"DESTINATION LEFT OFFLINE, database %v on %v requires manual intervention",
			request.DatabaseName, request.DestinationInstance)
	}
	return report.Err
}

// loadArrayCredentials resolves the named array in the YAML config into
// validated connection credentials
func loadArrayCredentials(configPath, nameOrEndpoint string) (*arrayprovider.Credentials, error) {
	configs, err := arrayprovider.LoadArrayConfigs(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load array config %v", configPath)
	}
	config, err := arrayprovider.FindArrayConfig(configs, nameOrEndpoint)
	if err != nil {
		return nil, err
	}
	credentials, err := arrayprovider.CreateCredentials(config.Secrets())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid credentials for array %v", nameOrEndpoint)
	}
	return credentials, nil
}

// acquireRefreshLock takes the etcd lock keyed on the destination instance and
// database, returning a release function
func acquireRefreshLock(endpoints []string, request *model.RefreshRequest) (func(), error) {
	dbClient, err := etcd.NewClient(endpoints, etcd.DefaultVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to reach lock endpoints %v", strings.Join(endpoints, ","))
	}

	key := fmt.Sprintf("dbrefresh/%v/%v", request.DestinationInstance, request.DatabaseName)
	log.Infof("acquiring refresh lock %v", key)
	lck, err := dbClient.WaitAcquireLock(key, etcd.DefaultLockTTLSeconds)
	if err != nil {
		dbClient.CloseClient()
		return nil, errors.Wrapf(err, "unable to acquire refresh lock %v", key)
	}

	return func() {
		if err := dbClient.ReleaseLock(lck); err != nil {
			log.Errorf("unable to release refresh lock %v, err=%v", key, err)
		}
		dbClient.CloseClient()
	}, nil
}

// printEvent writes one progress line per state machine event
func printEvent(event refresh.Event) {
	if event.Duration > 0 {
		fmt.Printf("%v [%v] %v (%v)\n", event.Time.Format(time.RFC3339), event.State, event.Message, event.Duration)
		return
	}
	fmt.Printf("%v [%v] %v\n", event.Time.Format(time.RFC3339), event.State, event.Message)
}

func printReport(report *refresh.Report) {
	if report.Success() {
		fmt.Printf("refresh %v succeeded in %v (overwrite %v)\n",
			report.OperationID, report.TotalDuration, report.OverwriteDuration)
		return
	}
	fmt.Printf("refresh %v failed after %v: %v\n", report.OperationID, report.TotalDuration, report.Err)
}

// engineAdapter exposes the SQL engine through the orchestrator's interfaces
type engineAdapter struct {
	engine *sqlengine.Engine
}

func (adapter *engineAdapter) ResolveDatabase(instance, name string) (refresh.DatabaseHandle, error) {
	db, err := adapter.engine.ResolveDatabase(instance, name)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (adapter *engineAdapter) ResolvePhysicalHostName(instance string) (string, error) {
	return adapter.engine.ResolvePhysicalHostName(instance)
}
