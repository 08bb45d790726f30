// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package sqlengine binds the refresh orchestrator to SQL Server instances.  It
// resolves databases, their primary file paths and the physical host behind a
// (possibly clustered) instance name, and drives the OFFLINE/ONLINE transitions
// that release and reacquire the engine's file handles.
package sqlengine

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	// SQL Server driver
	_ "github.com/denisenkom/go-mssqldb"

	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const (
	// Shared error messages
	errorMessageDatabaseNotFound  = "database %v not found on instance %v"
	errorMessageNoPhysicalHost    = "unable to resolve physical host name for instance %v"
	errorMessageNoPrimaryFile     = "no primary file found for database %v"
	errorMessageTransitionFailed  = "database %v did not reach state %v, current state %v"
)

const (
	queryDatabaseState   = `SELECT state_desc FROM sys.databases WHERE name = @p1`
	queryPrimaryFilePath = `SELECT physical_name FROM sys.master_files WHERE database_id = DB_ID(@p1) AND file_id = 1`
	queryPhysicalHost    = `SELECT CAST(SERVERPROPERTY('ComputerNamePhysicalNetBIOS') AS nvarchar(128))`
)

// Engine opens connections to SQL Server instances using one set of credentials.
// An empty Username selects integrated authentication.
type Engine struct {
	Username string
	Password string
}

// NewEngine returns an Engine using the given SQL credentials
func NewEngine(username, password string) *Engine {
	return &Engine{Username: username, Password: password}
}

// Database wraps a live binding to one database on one instance
type Database struct {
	db              *sql.DB
	instance        string
	name            string
	primaryFilePath string
	state           string
}

// ResolveDatabase connects to the instance and binds to the named database,
// capturing its current state and primary data file path.
func (engine *Engine) ResolveDatabase(instance, name string) (*Database, error) {
	log.Tracef(">>>>> ResolveDatabase called, instance=%v, name=%v", instance, name)
	defer log.Trace("<<<<< ResolveDatabase")

	db, err := engine.connect(instance)
	if err != nil {
		return nil, err
	}

	database := &Database{db: db, instance: instance, name: name}
	if err := database.refreshState(); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.QueryRow(queryPrimaryFilePath, name).Scan(&database.primaryFilePath); err != nil {
		db.Close()
		if err == sql.ErrNoRows {
			return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageNoPrimaryFile, name)
		}
		return nil, rerrors.NewRefreshError(rerrors.ConnectionFailed, err)
	}
	return database, nil
}

// ResolvePhysicalHostName returns the name of the machine currently executing the
// instance.  For clustered instances this is the owning node, which is where disk
// operations must be dispatched.
func (engine *Engine) ResolvePhysicalHostName(instance string) (string, error) {
	log.Tracef(">>>>> ResolvePhysicalHostName called, instance=%v", instance)
	defer log.Trace("<<<<< ResolvePhysicalHostName")

	db, err := engine.connect(instance)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var hostName sql.NullString
	if err := db.QueryRow(queryPhysicalHost).Scan(&hostName); err != nil {
		return "", rerrors.NewRefreshError(rerrors.ConnectionFailed, err)
	}
	if !hostName.Valid || (hostName.String == "") {
		return "", rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageNoPhysicalHost, instance)
	}
	return hostName.String, nil
}

func (engine *Engine) connect(instance string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", engine.connectionString(instance))
	if err != nil {
		return nil, rerrors.NewRefreshError(rerrors.ConnectionFailed, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, rerrors.NewRefreshError(rerrors.ConnectionFailed, err)
	}
	return db, nil
}

// connectionString builds a sqlserver:// URL for the instance.  All work happens in
// the master database; ALTER DATABASE cannot run from within the target.
func (engine *Engine) connectionString(instance string) string {
	dsn := &url.URL{
		Scheme:   "sqlserver",
		Host:     instance,
		RawQuery: url.Values{"database": {"master"}, "app name": {"dbrefresh"}}.Encode(),
	}
	if engine.Username != "" {
		dsn.User = url.UserPassword(engine.Username, engine.Password)
	}
	return dsn.String()
}

// Instance returns the instance address the database was resolved on
func (database *Database) Instance() string {
	return database.instance
}

// Name returns the database name
func (database *Database) Name() string {
	return database.name
}

// PrimaryFilePath returns the physical path of the database's primary data file
func (database *Database) PrimaryFilePath() string {
	return database.primaryFilePath
}

// State returns the last observed database state (see model.DatabaseState*)
func (database *Database) State() string {
	return database.state
}

// SetOffline takes the database offline, rolling back in-flight transactions, so the
// engine releases its file handles.  Calling SetOffline on an already offline
// database succeeds without side effects.
func (database *Database) SetOffline() error {
	log.Tracef(">>>>> SetOffline called, database=%v", database.name)
	defer log.Trace("<<<<< SetOffline")

	return database.transition(model.DatabaseStateOffline, fmt.Sprintf("ALTER DATABASE %v SET OFFLINE WITH ROLLBACK IMMEDIATE", quoteName(database.name)))
}

// SetOnline brings the database back online.  Calling SetOnline on an already online
// database succeeds without side effects; this is the recovery path after a failed
// refresh, so it must be safe to call from any state.
func (database *Database) SetOnline() error {
	log.Tracef(">>>>> SetOnline called, database=%v", database.name)
	defer log.Trace("<<<<< SetOnline")

	return database.transition(model.DatabaseStateOnline, fmt.Sprintf("ALTER DATABASE %v SET ONLINE", quoteName(database.name)))
}

// Close releases the instance connection
func (database *Database) Close() error {
	return database.db.Close()
}

func (database *Database) transition(targetState, statement string) error {
	if err := database.refreshState(); err != nil {
		return err
	}
	if database.state == targetState {
		log.Infof("database %v already %v, nothing to do", database.name, targetState)
		return nil
	}

	if _, err := database.db.Exec(statement); err != nil {
		return rerrors.NewRefreshError(rerrors.StateTransition, err)
	}

	if err := database.refreshState(); err != nil {
		return err
	}
	if database.state != targetState {
		return rerrors.NewRefreshErrorf(rerrors.StateTransition, errorMessageTransitionFailed, database.name, targetState, database.state)
	}
	return nil
}

func (database *Database) refreshState() error {
	var state string
	if err := database.db.QueryRow(queryDatabaseState, database.name).Scan(&state); err != nil {
		if err == sql.ErrNoRows {
			return rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageDatabaseNotFound, database.name, database.instance)
		}
		return rerrors.NewRefreshError(rerrors.ConnectionFailed, err)
	}
	database.state = state
	return nil
}

// quoteName brackets a SQL Server identifier, escaping closing brackets
func quoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
