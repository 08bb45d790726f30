// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package refresh implements the database refresh state machine.  One Run replaces
// the destination database's storage volume with a point-in-time copy of the
// source database's volume, sequencing the database engine, the per-host disk
// agents, and the storage array, with compensating actions on failure.
package refresh

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/hpe-storage/dbrefresh/arrayprovider"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

// State is the refresh state machine state
type State string

const (
	StateInit              State = "INIT"
	StateArrayConnected    State = "ARRAY_CONNECTED"
	StateTargetsResolved   State = "TARGETS_RESOLVED"
	StateDestDBOffline     State = "DEST_DB_OFFLINE"
	StateDestDiskOffline   State = "DEST_DISK_OFFLINE"
	StateVolumeOverwritten State = "VOLUME_OVERWRITTEN"
	StateDestDiskOnline    State = "DEST_DISK_ONLINE"
	StateDestDBOnline      State = "DEST_DB_ONLINE"
	StateAborting          State = "ABORTING"
	StateAborted           State = "ABORTED"
)

// Step names, used in events and the report
const (
	StepConnectArray    = "connect array session"
	StepResolveDest     = "resolve destination targets"
	StepResolveSource   = "resolve source targets"
	StepDestDBOffline   = "destination database offline"
	StepDestDiskOffline = "destination disk offline"
	StepOverwriteVolume = "overwrite destination volume"
	StepDestDiskOnline  = "destination disk online"
	StepDestDBOnline    = "destination database online"
)

// DatabaseHandle is a live binding to one database on one instance
type DatabaseHandle interface {
	Instance() string
	Name() string
	PrimaryFilePath() string
	State() string
	SetOffline() error
	SetOnline() error
	Close() error
}

// DatabaseEngine resolves database handles and physical host names
type DatabaseEngine interface {
	ResolveDatabase(instance, name string) (DatabaseHandle, error)
	ResolvePhysicalHostName(instance string) (string, error)
}

// HostExecutor runs disk operations on a named remote host
type HostExecutor interface {
	GetDiskForPath(hostName, accessPath string) (*model.HostDisk, error)
	SetDiskOffline(hostName string, diskNumber uint32, offline bool) error
}

// ArrayConnector authenticates an array session from credentials
type ArrayConnector interface {
	Connect(credentials *arrayprovider.Credentials) (arrayprovider.StorageProvider, error)
}

// ArrayConnectorFunc adapts a function to the ArrayConnector interface
type ArrayConnectorFunc func(credentials *arrayprovider.Credentials) (arrayprovider.StorageProvider, error)

// Connect calls the wrapped function
func (connect ArrayConnectorFunc) Connect(credentials *arrayprovider.Credentials) (arrayprovider.StorageProvider, error) {
	return connect(credentials)
}

// Event is one structured progress record emitted as the state machine advances
type Event struct {
	Time     time.Time     // When the event occurred
	State    State         // State after the transition
	Step     string        // Step the event belongs to, empty for terminal events
	Message  string        // Human readable progress message
	Duration time.Duration // Step duration, set on step completion events
}

// EventSink receives progress events.  A nil sink is valid and discards events.
type EventSink func(event Event)

// Report is the terminal result of one refresh operation
type Report struct {
	OperationID       string                   // Unique ID assigned to this run
	Database          string                   // Database that was refreshed
	State             State                    // Terminal state
	StepDurations     map[string]time.Duration // Duration of each completed step
	OverwriteDuration time.Duration            // Duration of the volume overwrite step
	TotalDuration     time.Duration            // End to end duration
	Unsafe            bool                     // Destination left offline, manual intervention needed
	Err               error                    // Terminal error, nil on success
}

// Success reports whether the refresh completed
func (report *Report) Success() bool {
	return report.Err == nil
}

// target binds one side's database handle, physical host, disk, and volume
type target struct {
	db     DatabaseHandle
	host   string
	disk   *model.HostDisk
	volume *model.StorageVolume
}

// Orchestrator sequences one refresh operation across its collaborators
type Orchestrator struct {
	Engine      DatabaseEngine
	Executor    HostExecutor
	Connector   ArrayConnector
	Credentials *arrayprovider.Credentials
	Events      EventSink
}

// Run executes the full refresh protocol for the given request and returns a
// terminal report.  The context is honored only until the first mutating step;
// once the destination database goes offline the run completes or fails through
// the compensation paths regardless of cancellation.
func (orchestrator *Orchestrator) Run(ctx context.Context, request *model.RefreshRequest) *Report {
	log.Tracef(">>>>> Run called, database=%v, source=%v, destination=%v",
		request.DatabaseName, request.SourceInstance, request.DestinationInstance)
	defer log.Trace("<<<<< Run")

	report := &Report{
		OperationID:   uuid.NewV4().String(),
		Database:      request.DatabaseName,
		State:         StateInit,
		StepDurations: make(map[string]time.Duration),
	}
	start := time.Now()
	defer func() {
		report.TotalDuration = time.Since(start)
	}()

	log.Infof("refresh operation %v started, database=%v, source=%v, destination=%v",
		report.OperationID, request.DatabaseName, request.SourceInstance, request.DestinationInstance)

	// Step 1, connect the array session
	if err := orchestrator.checkCanceled(ctx, report, StepConnectArray); err != nil {
		return report
	}
	var session arrayprovider.StorageProvider
	if err := orchestrator.runStep(report, StepConnectArray, StateArrayConnected,
		fmt.Sprintf("connecting to array %v", request.ArrayEndpoint),
		func() error {
			var err error
			session, err = orchestrator.Connector.Connect(orchestrator.Credentials)
			return err
		}); err != nil {
		return orchestrator.abort(report, StepConnectArray, err, nil)
	}
	defer session.Close()

	// Step 2, resolve the destination side
	if err := orchestrator.checkCanceled(ctx, report, StepResolveDest); err != nil {
		return report
	}
	var destination *target
	if err := orchestrator.runStep(report, StepResolveDest, StateArrayConnected,
		fmt.Sprintf("resolving destination database %v on %v", request.DatabaseName, request.DestinationInstance),
		func() error {
			var err error
			destination, err = orchestrator.resolveTarget(session, request.DestinationInstance, request.DatabaseName)
			return err
		}); err != nil {
		return orchestrator.abort(report, StepResolveDest, err, nil)
	}
	defer destination.db.Close()

	// Step 3, resolve the source side
	if err := orchestrator.checkCanceled(ctx, report, StepResolveSource); err != nil {
		return report
	}
	var source *target
	if err := orchestrator.runStep(report, StepResolveSource, StateTargetsResolved,
		fmt.Sprintf("resolving source database %v on %v", request.DatabaseName, request.SourceInstance),
		func() error {
			var err error
			source, err = orchestrator.resolveTarget(session, request.SourceInstance, request.DatabaseName)
			return err
		}); err != nil {
		return orchestrator.abort(report, StepResolveSource, err, nil)
	}
	defer source.db.Close()

	if source.volume.SerialNumber == destination.volume.SerialNumber {
		err := rerrors.NewRefreshErrorf(rerrors.InvalidArgument,
			"source and destination resolve to the same volume %v", source.volume.Name)
		return orchestrator.abort(report, StepResolveSource, err, nil)
	}
	log.Infof("targets resolved, source volume=%v (serial %v), destination volume=%v (serial %v)",
		source.volume.Name, source.volume.SerialNumber,
		destination.volume.Name, destination.volume.SerialNumber)

	// Step 4, destination database offline.  Last chance to honor cancellation.
	if err := orchestrator.checkCanceled(ctx, report, StepDestDBOffline); err != nil {
		return report
	}
	if err := orchestrator.runStep(report, StepDestDBOffline, StateDestDBOffline,
		fmt.Sprintf("taking database %v offline on %v", destination.db.Name(), destination.db.Instance()),
		destination.db.SetOffline); err != nil {
		return orchestrator.abort(report, StepDestDBOffline, err, nil)
	}

	// Step 5, destination disk offline.  On failure the database must not stay
	// offline with a live disk, so it is brought back online before aborting.
	if err := orchestrator.runStep(report, StepDestDiskOffline, StateDestDiskOffline,
		fmt.Sprintf("taking disk %v offline on host %v", destination.disk.Number, destination.host),
		func() error {
			return orchestrator.Executor.SetDiskOffline(destination.host, destination.disk.Number, true)
		}); err != nil {
		return orchestrator.abort(report, StepDestDiskOffline, err, func() {
			orchestrator.compensateDatabaseOnline(destination)
		})
	}

	// Step 6, the overwrite itself
	if err := orchestrator.runStep(report, StepOverwriteVolume, StateVolumeOverwritten,
		fmt.Sprintf("overwriting volume %v from %v", destination.volume.Name, source.volume.Name),
		func() error {
			return session.OverwriteVolume(destination.volume.Name, source.volume.Name)
		}); err != nil {
		return orchestrator.abort(report, StepOverwriteVolume, err, func() {
			orchestrator.compensateDiskOnline(destination)
			orchestrator.compensateDatabaseOnline(destination)
		})
	}
	report.OverwriteDuration = report.StepDurations[StepOverwriteVolume]
	log.Infof("volume %v overwritten from %v in %v",
		destination.volume.Name, source.volume.Name, report.OverwriteDuration)

	// Step 7, destination disk back online.  A failure here leaves the
	// destination unusable; there is nothing safe left to roll back to.
	if err := orchestrator.runStep(report, StepDestDiskOnline, StateDestDiskOnline,
		fmt.Sprintf("bringing disk %v online on host %v", destination.disk.Number, destination.host),
		func() error {
			return orchestrator.Executor.SetDiskOffline(destination.host, destination.disk.Number, false)
		}); err != nil {
		return orchestrator.abortUnsafe(report, StepDestDiskOnline, err)
	}

	// Step 8, destination database back online
	if err := orchestrator.runStep(report, StepDestDBOnline, StateDestDBOnline,
		fmt.Sprintf("bringing database %v online on %v", destination.db.Name(), destination.db.Instance()),
		destination.db.SetOnline); err != nil {
		return orchestrator.abortUnsafe(report, StepDestDBOnline, err)
	}

	orchestrator.emit(Event{Time: time.Now(), State: StateDestDBOnline,
		Message: fmt.Sprintf("refresh of database %v completed", request.DatabaseName)})
	log.Infof("refresh operation %v completed, database=%v", report.OperationID, request.DatabaseName)
	return report
}

// resolveTarget resolves one side's database handle, physical host name, backing
// disk, and array volume.  A physical host name that cannot be resolved is fatal;
// every later disk operation dispatches against it.
func (orchestrator *Orchestrator) resolveTarget(session arrayprovider.StorageProvider, instance, databaseName string) (*target, error) {
	db, err := orchestrator.Engine.ResolveDatabase(instance, databaseName)
	if err != nil {
		return nil, err
	}

	resolved := &target{db: db}
	defer func() {
		// Release the handle on any partial resolution
		if resolved.volume == nil {
			db.Close()
		}
	}()

	host, err := orchestrator.Engine.ResolvePhysicalHostName(instance)
	if err != nil {
		return nil, err
	}
	resolved.host = host

	disk, err := LocateDiskForDatabase(orchestrator.Executor, host, db.PrimaryFilePath())
	if err != nil {
		return nil, err
	}
	resolved.disk = disk

	volume, err := session.GetVolumeBySerial(disk.SerialNumber)
	if err != nil {
		return nil, err
	}
	resolved.volume = volume
	return resolved, nil
}

// runStep times one step, emits its progress events, and records its duration.
// On failure the report is left untouched for the abort path to finalize.
func (orchestrator *Orchestrator) runStep(report *Report, step string, state State, message string, fn func() error) error {
	orchestrator.emit(Event{Time: time.Now(), State: report.State, Step: step, Message: message})
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	report.StepDurations[step] = elapsed
	report.State = state
	orchestrator.emit(Event{Time: time.Now(), State: state, Step: step,
		Message: fmt.Sprintf("%v completed", step), Duration: elapsed})
	return nil
}

func (orchestrator *Orchestrator) emit(event Event) {
	if orchestrator.Events != nil {
		orchestrator.Events(event)
	}
}

func (orchestrator *Orchestrator) checkCanceled(ctx context.Context, report *Report, step string) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		canceled := rerrors.NewRefreshErrorf(rerrors.Canceled, "operation canceled before %v: %v", step, err)
		orchestrator.abort(report, step, canceled, nil)
		return canceled
	}
	return nil
}

// abort runs the step's compensation, if any, and finalizes the report
func (orchestrator *Orchestrator) abort(report *Report, step string, err error, compensate func()) *Report {
	log.Errorf("refresh operation %v aborting at step %q, err=%v", report.OperationID, step, err)
	report.State = StateAborting
	orchestrator.emit(Event{Time: time.Now(), State: StateAborting, Step: step,
		Message: fmt.Sprintf("%v failed: %v", step, err)})

	if compensate != nil {
		compensate()
	}

	report.State = StateAborted
	report.Err = rerrors.NewRefreshErrorf(rerrors.CodeOf(err), "%v failed: %v", step, err)
	orchestrator.emit(Event{Time: time.Now(), State: StateAborted, Step: step, Message: "refresh aborted"})
	return report
}

// abortUnsafe finalizes a step 7 or 8 failure.  The destination is left offline
// with no compensation possible, so the report is flagged for manual intervention.
func (orchestrator *Orchestrator) abortUnsafe(report *Report, step string, err error) *Report {
	log.Errorf("refresh operation %v UNSAFE failure at step %q, destination requires manual intervention, err=%v",
		report.OperationID, step, err)
	report.Unsafe = true
	return orchestrator.abort(report, step, err, nil)
}

// compensateDatabaseOnline brings the destination database back online after a
// failed mutating step.  Compensation failures are reported, never recursed into.
func (orchestrator *Orchestrator) compensateDatabaseOnline(destination *target) {
	log.Infof("compensating, bringing database %v back online on %v",
		destination.db.Name(), destination.db.Instance())
	if err := destination.db.SetOnline(); err != nil {
		log.Errorf("compensation failed, database %v remains offline on %v, err=%v",
			destination.db.Name(), destination.db.Instance(), err)
	}
}

// compensateDiskOnline brings the destination disk back online after a failed
// overwrite, ahead of the database compensation.
func (orchestrator *Orchestrator) compensateDiskOnline(destination *target) {
	log.Infof("compensating, bringing disk %v back online on host %v",
		destination.disk.Number, destination.host)
	if err := orchestrator.Executor.SetDiskOffline(destination.host, destination.disk.Number, false); err != nil {
		log.Errorf("compensation failed, disk %v remains offline on host %v, err=%v",
			destination.disk.Number, destination.host, err)
	}
}
