// Package rosproc launches and kills the external rosbag and rosnode
// processes a playback session requests.
package rosproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils/pexec"

	"go.viam.com/bagctl/session"
)

const (
	rosbagExecutable  = "rosbag"
	rosnodeExecutable = "rosnode"
)

// managedProcess is the subset of pexec.ManagedProcess the launcher drives.
type managedProcess interface {
	Start(ctx context.Context) error
	Stop() error
}

// A Launcher runs rosbag and rosnode as managed child processes, one per
// request token. It implements session.Launcher: requests are issued fire
// and forget, and no exit is ever surfaced back to the session.
type Launcher struct {
	mu     sync.Mutex
	procs  map[string]managedProcess
	logger golog.Logger

	newProcess func(cfg pexec.ProcessConfig) managedProcess
	now        func() time.Time
}

// NewLauncher makes a launcher with no processes attached.
func NewLauncher(logger golog.Logger) *Launcher {
	return &Launcher{
		procs:  map[string]managedProcess{},
		logger: logger,
		newProcess: func(cfg pexec.ProcessConfig) managedProcess {
			return pexec.NewManagedProcess(cfg, logger)
		},
		now: time.Now,
	}
}

// Play spawns `rosbag play` for the request.
func (l *Launcher) Play(ctx context.Context, req session.PlayRequest) error {
	return l.start(ctx, req.Token, PlayArgs(req))
}

// Record spawns `rosbag record` for the request.
func (l *Launcher) Record(ctx context.Context, req session.RecordRequest) error {
	return l.start(ctx, req.Token, RecordArgs(req))
}

// Filter spawns `rosbag filter` rewriting req.Src into req.Dst with only
// the requested topics. Each run gets its own token so that repeated saves
// to the same destination never shadow a still-running rewrite.
func (l *Launcher) Filter(ctx context.Context, req session.FilterRequest) error {
	return l.start(ctx, fmt.Sprintf("filter_%d", l.now().UnixNano()), FilterArgs(req))
}

func (l *Launcher) start(ctx context.Context, id string, args []string) error {
	cfg := pexec.ProcessConfig{
		ID:   id,
		Name: rosbagExecutable,
		Args: args,
		Log:  true,
		// Play, record, and filter runs end on their own terms; a finished
		// process must never be relaunched.
		OnUnexpectedExit: func(code int) bool {
			l.logger.Debugw("external process exited", "id", id, "code", code)
			l.forget(id)
			return false
		},
	}
	proc := l.newProcess(cfg)
	if err := proc.Start(ctx); err != nil {
		return errors.Wrapf(err, "unable to start %s %s", rosbagExecutable, args[0])
	}

	l.mu.Lock()
	l.procs[id] = proc
	l.mu.Unlock()
	return nil
}

// Kill stops the process previously launched under token and asks the ROS
// master to drop the node registered with that name. Neither outcome is
// confirmed.
func (l *Launcher) Kill(ctx context.Context, token string) error {
	l.mu.Lock()
	proc, ok := l.procs[token]
	delete(l.procs, token)
	l.mu.Unlock()

	if ok {
		if err := proc.Stop(); err != nil {
			l.logger.Errorw("unable to stop process", "token", token, "error", err)
		}
	}

	// The node may already be deregistered; rosnode's own failure is not
	// observed.
	killID := "kill_" + token
	cfg := pexec.ProcessConfig{
		ID:   killID,
		Name: rosnodeExecutable,
		Args: []string{"kill", "/" + token},
		Log:  true,
		OnUnexpectedExit: func(code int) bool {
			l.forget(killID)
			return false
		},
	}
	killProc := l.newProcess(cfg)
	if err := killProc.Start(ctx); err != nil {
		return errors.Wrapf(err, "unable to run %s kill for %q", rosnodeExecutable, token)
	}

	l.mu.Lock()
	l.procs[killID] = killProc
	l.mu.Unlock()
	return nil
}

func (l *Launcher) forget(id string) {
	l.mu.Lock()
	delete(l.procs, id)
	l.mu.Unlock()
}

// Close stops every process still attached to the launcher.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	for id, proc := range l.procs {
		err = multierr.Combine(err, proc.Stop())
		delete(l.procs, id)
	}
	return err
}
