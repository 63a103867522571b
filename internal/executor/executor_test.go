package executor

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"blockplan/internal/config"
	"blockplan/internal/layout"
	"blockplan/internal/plan"
	"blockplan/pkg/shell"
)

var errSomeExit = errors.New("exit status 1")

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// stubRunner records invocations and lets tests fail specific commands.
type stubRunner struct {
	mu    sync.Mutex
	calls []string
	fail  func(name string, args []string, nth int) bool
	seen  map[string]int
}

func newStubRunner(fail func(name string, args []string, nth int) bool) *stubRunner {
	return &stubRunner{fail: fail, seen: map[string]int{}}
}

func (s *stubRunner) run(_ context.Context, _ time.Duration, name string, args ...string) (shell.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := name + " " + strings.Join(args, " ")
	s.calls = append(s.calls, key)
	s.seen[key]++
	if s.fail != nil && s.fail(name, args, s.seen[key]) {
		return shell.Result{Code: 1, Stderr: []byte("boom")}, errSomeExit
	}
	return shell.Result{}, nil
}

func singleDiskSpec() *layout.LayoutSpec {
	s := layout.LayoutSpec{
		Disks: []layout.Disk{{ID: "d1", Device: "/dev/sdb"}},
		Partitions: []layout.Partition{
			{ID: "p1", Disk: "d1", Index: 1, Start: "1MiB", End: "100%"},
		},
		Filesystems: []layout.FilesystemSpec{
			{ID: "fs1", Kind: layout.FSBtrfs, Partitions: []string{"p1"}, Label: "data"},
		},
		Mounts: []layout.MountSpec{
			{ID: "m1", Filesystem: "fs1", Target: "/mnt/data"},
		},
	}
	out := s.WithDefaults()
	return &out
}

func buildPlan(t *testing.T, spec *layout.LayoutSpec) *plan.Plan {
	t.Helper()
	pl, err := plan.Build(spec, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return pl
}

func newTestExecutor(cfg config.Config, stub *stubRunner) *Executor {
	e := New(cfg, testLogger())
	e.run = stub.run
	return e
}

func resultByID(t *testing.T, rep *RunReport, id string) StepResult {
	t.Helper()
	for _, r := range rep.Results {
		if r.StepID == id {
			return r
		}
	}
	t.Fatalf("no result for %q", id)
	return StepResult{}
}

func TestExecuteAllSucceed(t *testing.T) {
	stub := newStubRunner(nil)
	cfg := config.Defaults()
	cfg.RetryBackoff = time.Millisecond
	rep := newTestExecutor(cfg, stub).Execute(context.Background(), buildPlan(t, singleDiskSpec()))
	if !rep.Completed {
		t.Fatalf("report not completed: %+v", rep.Results)
	}
	for _, r := range rep.Results {
		if r.Outcome != OutcomeSucceeded {
			t.Fatalf("step %s outcome = %s", r.StepID, r.Outcome)
		}
	}
}

func TestExecuteHaltsOnDestructiveFailureAndSkipsDependents(t *testing.T) {
	// plan order: wipe, partition, format, label, mount — fail the third
	stub := newStubRunner(func(name string, _ []string, _ int) bool {
		return name == "mkfs.btrfs"
	})
	cfg := config.Defaults()
	cfg.RetryBackoff = time.Millisecond
	rep := newTestExecutor(cfg, stub).Execute(context.Background(), buildPlan(t, singleDiskSpec()))

	if rep.Completed {
		t.Fatal("report should be halted")
	}
	if got := resultByID(t, rep, "wipe:d1").Outcome; got != OutcomeSucceeded {
		t.Fatalf("wipe outcome = %s", got)
	}
	if got := resultByID(t, rep, "partition:d1").Outcome; got != OutcomeSucceeded {
		t.Fatalf("partition outcome = %s", got)
	}
	failed := resultByID(t, rep, "format:fs1")
	if failed.Outcome != OutcomeFailed || failed.ErrorKind != ErrKindExit {
		t.Fatalf("format result = %+v", failed)
	}
	if failed.Retries != 0 {
		t.Fatalf("destructive step was retried %d times", failed.Retries)
	}
	for _, id := range []string{"label:fs1", "mount:m1"} {
		if got := resultByID(t, rep, id).Outcome; got != OutcomeSkipped {
			t.Fatalf("%s outcome = %s, want skipped", id, got)
		}
	}
	for _, call := range stub.calls {
		if strings.HasPrefix(call, "mount") || strings.HasPrefix(call, "btrfs filesystem label") {
			t.Fatalf("dependent command executed after failure: %s", call)
		}
	}
	if f := rep.FirstFailure(); f == nil || f.StepID != "format:fs1" {
		t.Fatalf("FirstFailure = %+v", f)
	}
}

func TestExecuteRetriesNonDestructiveStep(t *testing.T) {
	stub := newStubRunner(func(name string, _ []string, nth int) bool {
		return name == "mount" && nth == 1 // transient busy, succeeds on retry
	})
	cfg := config.Defaults()
	cfg.Retries = 1
	cfg.RetryBackoff = time.Millisecond
	rep := newTestExecutor(cfg, stub).Execute(context.Background(), buildPlan(t, singleDiskSpec()))

	if !rep.Completed {
		t.Fatalf("report not completed: %+v", rep.Results)
	}
	mnt := resultByID(t, rep, "mount:m1")
	if mnt.Outcome != OutcomeSucceeded {
		t.Fatalf("mount outcome = %s", mnt.Outcome)
	}
	if mnt.Retries != 1 {
		t.Fatalf("mount retries = %d, want 1", mnt.Retries)
	}
	if mnt.ErrorKind != "" || mnt.Detail != "" {
		t.Fatalf("succeeded step kept failure info: kind=%q detail=%q", mnt.ErrorKind, mnt.Detail)
	}
}

func TestExecuteBoundedBlastRadius(t *testing.T) {
	spec := layout.LayoutSpec{
		Disks: []layout.Disk{
			{ID: "d1", Device: "/dev/sdb"},
			{ID: "d2", Device: "/dev/sdc"},
		},
		Partitions: []layout.Partition{
			{ID: "p1", Disk: "d1", Index: 1, Start: "1MiB", End: "100%"},
			{ID: "p2", Disk: "d2", Index: 1, Start: "1MiB", End: "100%"},
		},
		Filesystems: []layout.FilesystemSpec{
			{ID: "fs1", Kind: layout.FSBtrfs, Partitions: []string{"p1"}},
			{ID: "fs2", Kind: layout.FSBtrfs, Partitions: []string{"p2"}},
		},
	}
	out := spec.WithDefaults()
	// fail d1's format only
	stub := newStubRunner(func(name string, args []string, _ int) bool {
		return name == "mkfs.btrfs" && strings.Contains(strings.Join(args, " "), "/dev/sdb1")
	})
	cfg := config.Defaults()
	cfg.StopOnFailure = false
	cfg.Workers = 1 // deterministic interleaving
	cfg.RetryBackoff = time.Millisecond
	rep := newTestExecutor(cfg, stub).Execute(context.Background(), buildPlan(t, &out))

	if rep.Completed {
		t.Fatal("run with a failure must not be Completed")
	}
	if got := resultByID(t, rep, "format:fs1").Outcome; got != OutcomeFailed {
		t.Fatalf("format:fs1 = %s", got)
	}
	// the independent disk's chain still ran
	if got := resultByID(t, rep, "format:fs2").Outcome; got != OutcomeSucceeded {
		t.Fatalf("format:fs2 = %s, want succeeded", got)
	}
}

func TestExecuteStopOnFailureSkipsIndependentChains(t *testing.T) {
	spec := layout.LayoutSpec{
		Disks: []layout.Disk{
			{ID: "d1", Device: "/dev/sdb"},
			{ID: "d2", Device: "/dev/sdc"},
		},
		Partitions: []layout.Partition{
			{ID: "p1", Disk: "d1", Index: 1, Start: "1MiB", End: "100%"},
			{ID: "p2", Disk: "d2", Index: 1, Start: "1MiB", End: "100%"},
		},
		Filesystems: []layout.FilesystemSpec{
			{ID: "fs1", Kind: layout.FSBtrfs, Partitions: []string{"p1"}},
			{ID: "fs2", Kind: layout.FSBtrfs, Partitions: []string{"p2"}},
		},
	}
	out := spec.WithDefaults()
	stub := newStubRunner(func(name string, args []string, _ int) bool {
		return name == "wipefs" && strings.Contains(strings.Join(args, " "), "/dev/sdb")
	})
	cfg := config.Defaults() // StopOnFailure true
	cfg.Workers = 1
	cfg.RetryBackoff = time.Millisecond
	rep := newTestExecutor(cfg, stub).Execute(context.Background(), buildPlan(t, &out))

	if rep.Completed {
		t.Fatal("halted run reported as completed")
	}
	// with one worker the halt lands before the second disk's chain starts
	if got := resultByID(t, rep, "format:fs2").Outcome; got != OutcomeSkipped {
		t.Fatalf("format:fs2 = %s, want skipped under stop-on-failure", got)
	}
}

func TestExecuteCancellationSkipsPendingSteps(t *testing.T) {
	stub := newStubRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.Defaults()
	rep := newTestExecutor(cfg, stub).Execute(ctx, buildPlan(t, singleDiskSpec()))

	if rep.Completed {
		t.Fatal("canceled run reported as completed")
	}
	for _, r := range rep.Results {
		if r.Outcome != OutcomeSkipped {
			t.Fatalf("step %s outcome = %s, want skipped", r.StepID, r.Outcome)
		}
	}
}

func TestRunStepDoesNotRetryMissingTool(t *testing.T) {
	stub := newStubRunner(nil)
	e := newTestExecutor(config.Defaults(), stub)
	e.run = func(_ context.Context, _ time.Duration, name string, _ ...string) (shell.Result, error) {
		return shell.Result{Code: -1}, shell.ErrNotFound
	}
	st := &plan.Step{ID: "mount:x", Kind: plan.KindMount, Commands: []plan.Command{{Name: "mount"}}}
	res := e.runStep(context.Background(), st)
	if res.Outcome != OutcomeFailed || res.ErrorKind != ErrKindNotFound {
		t.Fatalf("result = %+v", res)
	}
	if res.Retries != 0 {
		t.Fatalf("missing tool was retried %d times", res.Retries)
	}
}
