package health

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// LocalOptions configures a local application smoke test.
type LocalOptions struct {
	// Dir is the working directory for the application process.
	Dir string

	// Command launches the application, argv style.
	Command []string

	// HealthURL is polled until it answers healthy.
	HealthURL string

	// StartupTimeout bounds how long the application may take to come up.
	StartupTimeout time.Duration

	// PollInterval separates health probes.
	PollInterval time.Duration
}

// CheckLocal starts the application as a subprocess, polls its health
// endpoint until it answers or the startup timeout passes, and always tears
// the process down afterwards. The process runs in its own process group so
// the teardown also reaches any workers it spawned.
func (v *Verifier) CheckLocal(ctx context.Context, opts LocalOptions) Status {
	if len(opts.Command) == 0 {
		v.log.Error("Local check has no command to run")
		return Unhealthy
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 60 * time.Second
	}

	log := v.log.WithField("command", opts.Command[0])
	log.Info("Starting application locally for smoke test")

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		log.WithError(err).Error("Could not start application process")
		v.metrics.RecordHealthAttempt("local", Unhealthy.String())
		return Unhealthy
	}

	// Reap the process in the background so an early exit is observable
	// without blocking the poll loop.
	var exitErr error
	exited := make(chan struct{})
	go func() {
		exitErr = cmd.Wait()
		close(exited)
	}()
	defer v.stopProcessGroup(cmd.Process.Pid, exited)

	deadline := time.Now().Add(opts.StartupTimeout)
	for {
		select {
		case <-ctx.Done():
			return TimedOut
		case <-exited:
			// The server exiting before answering healthy is a failure even
			// with exit code zero; a health server does not return.
			log.WithError(exitErr).Error("Application exited before becoming healthy")
			v.metrics.RecordHealthAttempt("local", Unhealthy.String())
			return Unhealthy
		default:
		}

		outcome, detail := v.probeOnce(ctx, opts.HealthURL)
		v.metrics.RecordHealthAttempt("local", outcome.String())
		switch outcome {
		case Healthy:
			log.Info("Application answered healthy locally")
			return Healthy
		case Unhealthy:
			log.WithError(detail).Error("Application answered unhealthy locally")
			return Unhealthy
		}

		if time.Now().After(deadline) {
			log.Warn("Application did not become healthy before the startup timeout")
			return TimedOut
		}
		if err := sleep(ctx, opts.PollInterval); err != nil {
			return TimedOut
		}
	}
}

// stopProcessGroup terminates the subprocess and everything it spawned:
// SIGTERM to the group, a grace period, then SIGKILL. The group id equals
// the child's pid because the child was started with Setpgid.
func (v *Verifier) stopProcessGroup(pgid int, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	default:
	}

	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		v.log.Warnf("process group %d ignored SIGTERM, sending SIGKILL", pgid)
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		<-exited
	}
}
