package health

import (
	"context"
	"errors"

	"github.com/docforge/docforge/pkg/controlplane"
)

// Terminal job run lifecycle states.
const (
	lifecycleTerminated    = "TERMINATED"
	lifecycleSkipped       = "SKIPPED"
	lifecycleInternalError = "INTERNAL_ERROR"
)

// CheckJobTrigger triggers a one-shot run of the extraction job and watches
// it for a while. The policy here is deliberately lenient: the point is to
// prove the job can be triggered at all, not that a full extraction
// completes inside the check window. A trigger that yields no run id, or a
// run still going when attempts run out, is reported as healthy with a
// warning. Only a refused trigger or a run that terminates badly fails.
func (v *Verifier) CheckJobTrigger(ctx context.Context, client *controlplane.Client, jobID int64, policy Policy) Status {
	log := v.log.WithField("job_id", jobID)
	log.Info("Triggering extraction job")

	run, err := client.RunJobNow(ctx, jobID)
	if err != nil {
		log.WithError(err).Error("Job trigger was refused")
		v.metrics.RecordHealthAttempt("job_trigger", Unhealthy.String())
		return Unhealthy
	}
	if run == nil || run.RunID == 0 {
		log.Warn("Job triggered but no run id returned, skipping run watch")
		v.metrics.RecordHealthAttempt("job_trigger", Healthy.String())
		return Healthy
	}

	log = log.WithField("job_run_id", run.RunID)
	log.Info("Job run started, watching for completion")

	status := Waiting
	err = policy.Do(ctx, func(ctx context.Context, n int) (bool, error) {
		current, err := client.GetJobRun(ctx, run.RunID)
		if err != nil {
			log.WithField("attempt", n).WithError(err).Warn("Could not poll job run")
			return false, nil
		}
		switch current.State.LifeCycleState {
		case lifecycleTerminated, lifecycleInternalError:
			if current.State.ResultState == "SUCCESS" {
				log.Info("Job run completed successfully")
				status = Healthy
			} else {
				log.WithField("result_state", current.State.ResultState).
					Error("Job run terminated without success")
				status = Unhealthy
			}
			return true, nil
		case lifecycleSkipped:
			log.Warn("Job run was skipped")
			status = Healthy
			return true, nil
		default:
			log.WithField("attempt", n).
				WithField("lifecycle_state", current.State.LifeCycleState).
				Debug("Job run still in progress")
			return false, nil
		}
	})
	if err != nil {
		if errors.Is(err, ErrAttemptsExhausted) {
			// Long extractions are expected; a run that outlives the check
			// window proves the trigger worked.
			log.Warn("Job run still in progress after watch window, treating trigger as verified")
			status = Healthy
		} else if status == Waiting {
			status = TimedOut
		}
	}

	v.metrics.RecordHealthAttempt("job_trigger", status.String())
	return status
}
