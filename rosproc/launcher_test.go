package rosproc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/pexec"

	"go.viam.com/bagctl/session"
)

type fakeProcess struct {
	mu       sync.Mutex
	cfg      pexec.ProcessConfig
	started  int
	stopped  int
	startErr error
}

func (p *fakeProcess) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started++
	return nil
}

func (p *fakeProcess) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	return nil
}

func (p *fakeProcess) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// newTestLauncher swaps the process constructor for one that records every
// fake it hands out, in creation order.
func newTestLauncher(t *testing.T) (*Launcher, *[]*fakeProcess) {
	t.Helper()
	spawned := []*fakeProcess{}
	launcher := NewLauncher(golog.NewTestLogger(t))
	launcher.newProcess = func(cfg pexec.ProcessConfig) managedProcess {
		proc := &fakeProcess{cfg: cfg}
		spawned = append(spawned, proc)
		return proc
	}
	return launcher, &spawned
}

func (l *Launcher) trackedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.procs))
	for id := range l.procs {
		ids = append(ids, id)
	}
	return ids
}

func TestLauncherPlayTracksToken(t *testing.T) {
	launcher, spawned := newTestLauncher(t)
	req := session.PlayRequest{
		Path:   "/tmp/drive.bag",
		Rate:   1.0,
		Topics: []string{"/imu"},
		Token:  "play_42",
	}
	test.That(t, launcher.Play(context.Background(), req), test.ShouldBeNil)

	test.That(t, *spawned, test.ShouldHaveLength, 1)
	proc := (*spawned)[0]
	test.That(t, proc.cfg.ID, test.ShouldEqual, "play_42")
	test.That(t, proc.cfg.Name, test.ShouldEqual, "rosbag")
	test.That(t, proc.cfg.Args, test.ShouldResemble, PlayArgs(req))
	test.That(t, proc.started, test.ShouldEqual, 1)
	test.That(t, launcher.trackedIDs(), test.ShouldResemble, []string{"play_42"})
}

func TestLauncherStartFailureTracksNothing(t *testing.T) {
	launcher, _ := newTestLauncher(t)
	launcher.newProcess = func(cfg pexec.ProcessConfig) managedProcess {
		return &fakeProcess{cfg: cfg, startErr: errors.New("executable not found")}
	}

	err := launcher.Record(context.Background(), session.RecordRequest{
		Topics: []string{"/imu"},
		Token:  "record_42",
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to start rosbag record")
	test.That(t, launcher.trackedIDs(), test.ShouldBeEmpty)
}

func TestLauncherKillStopsOwnedProcess(t *testing.T) {
	launcher, spawned := newTestLauncher(t)
	req := session.RecordRequest{Topics: []string{"/imu"}, Token: "record_7"}
	test.That(t, launcher.Record(context.Background(), req), test.ShouldBeNil)

	test.That(t, launcher.Kill(context.Background(), "record_7"), test.ShouldBeNil)

	test.That(t, *spawned, test.ShouldHaveLength, 2)
	recProc, killProc := (*spawned)[0], (*spawned)[1]
	test.That(t, recProc.stopCount(), test.ShouldEqual, 1)
	test.That(t, killProc.cfg.ID, test.ShouldEqual, "kill_record_7")
	test.That(t, killProc.cfg.Name, test.ShouldEqual, "rosnode")
	test.That(t, killProc.cfg.Args, test.ShouldResemble, []string{"kill", "/record_7"})
	test.That(t, launcher.trackedIDs(), test.ShouldResemble, []string{"kill_record_7"})
}

func TestLauncherKillUnknownTokenStillIssuesNodeKill(t *testing.T) {
	launcher, spawned := newTestLauncher(t)
	test.That(t, launcher.Kill(context.Background(), "play_gone"), test.ShouldBeNil)

	test.That(t, *spawned, test.ShouldHaveLength, 1)
	test.That(t, (*spawned)[0].cfg.Name, test.ShouldEqual, "rosnode")
	test.That(t, (*spawned)[0].cfg.Args, test.ShouldResemble, []string{"kill", "/play_gone"})
}

func TestLauncherFilterRunsNeverCollide(t *testing.T) {
	launcher, spawned := newTestLauncher(t)
	var tick int64
	launcher.now = func() time.Time {
		tick++
		return time.Unix(0, tick)
	}

	req := session.FilterRequest{Src: "in.bag", Dst: "out.bag", Topics: []string{"/imu"}}
	test.That(t, launcher.Filter(context.Background(), req), test.ShouldBeNil)
	test.That(t, launcher.Filter(context.Background(), req), test.ShouldBeNil)

	test.That(t, *spawned, test.ShouldHaveLength, 2)
	test.That(t, (*spawned)[0].cfg.ID, test.ShouldNotEqual, (*spawned)[1].cfg.ID)
	test.That(t, launcher.trackedIDs(), test.ShouldHaveLength, 2)

	test.That(t, launcher.Close(), test.ShouldBeNil)
	test.That(t, (*spawned)[0].stopCount(), test.ShouldEqual, 1)
	test.That(t, (*spawned)[1].stopCount(), test.ShouldEqual, 1)
}

func TestLauncherUnexpectedExitDetaches(t *testing.T) {
	launcher, spawned := newTestLauncher(t)
	req := session.PlayRequest{Path: "a.bag", Rate: 1.0, Topics: []string{"/imu"}, Token: "play_9"}
	test.That(t, launcher.Play(context.Background(), req), test.ShouldBeNil)

	proc := (*spawned)[0]
	test.That(t, proc.cfg.OnUnexpectedExit(0), test.ShouldBeFalse)
	test.That(t, launcher.trackedIDs(), test.ShouldBeEmpty)

	// the finished run is no longer the launcher's to stop
	test.That(t, launcher.Close(), test.ShouldBeNil)
	test.That(t, proc.stopCount(), test.ShouldEqual, 0)
}

func TestLauncherCloseStopsStragglers(t *testing.T) {
	launcher, spawned := newTestLauncher(t)
	test.That(t, launcher.Play(context.Background(), session.PlayRequest{
		Path: "a.bag", Rate: 1.0, Topics: []string{"/imu"}, Token: "play_1",
	}), test.ShouldBeNil)
	test.That(t, launcher.Record(context.Background(), session.RecordRequest{
		Topics: []string{"/imu"}, Token: "record_1",
	}), test.ShouldBeNil)

	test.That(t, launcher.Close(), test.ShouldBeNil)
	test.That(t, (*spawned)[0].stopCount(), test.ShouldEqual, 1)
	test.That(t, (*spawned)[1].stopCount(), test.ShouldEqual, 1)
	test.That(t, launcher.trackedIDs(), test.ShouldBeEmpty)

	// a second close has nothing left to stop
	test.That(t, launcher.Close(), test.ShouldBeNil)
	test.That(t, (*spawned)[0].stopCount(), test.ShouldEqual, 1)
}
