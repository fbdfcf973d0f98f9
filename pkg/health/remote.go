package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docforge/docforge/pkg/telemetry"
)

// healthPayload is the response body the application serves on its health
// endpoint.
type healthPayload struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Verifier runs HTTP health checks against the application.
type Verifier struct {
	httpClient *http.Client
	log        *telemetry.Logger
	metrics    *telemetry.Metrics
}

// NewVerifier builds a verifier. The HTTP client never follows redirects:
// the platform answers unauthenticated requests to a healthy app with an
// auth redirect, and that redirect is itself the signal we are after.
func NewVerifier(log *telemetry.Logger, metrics *telemetry.Metrics) *Verifier {
	return &Verifier{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log:     log.NewComponentLogger("health"),
		metrics: metrics,
	}
}

// CheckRemote polls the deployed application's health endpoint until it
// answers. Two answers count as healthy: a 200 with a {"status":"healthy"}
// body, and an auth redirect (the endpoint sits behind platform SSO, so a
// redirect proves the app is up and serving). Anything else is retried.
func (v *Verifier) CheckRemote(ctx context.Context, healthURL string, policy Policy) Status {
	log := v.log.WithField("url", healthURL)
	log.Info("Checking deployed application health")

	status := Waiting
	err := policy.Do(ctx, func(ctx context.Context, n int) (bool, error) {
		outcome, detail := v.probeOnce(ctx, healthURL)
		v.metrics.RecordHealthAttempt("remote", outcome.String())
		switch outcome {
		case Healthy:
			log.WithField("attempt", n).Info("Application is healthy")
			status = Healthy
			return true, nil
		case Unhealthy:
			log.WithField("attempt", n).WithError(detail).Error("Application reported unhealthy")
			status = Unhealthy
			return true, nil
		default:
			log.WithField("attempt", n).WithError(detail).Debug("Application not ready yet")
			return false, nil
		}
	})
	if err != nil {
		if errors.Is(err, ErrAttemptsExhausted) {
			log.Warn("Application did not become healthy in time")
			return TimedOut
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return TimedOut
		}
	}
	return status
}

// probeOnce classifies a single HTTP probe. Waiting means "retry", Healthy
// and Unhealthy are terminal. The detail error explains non-healthy
// outcomes for logging.
func (v *Verifier) probeOnce(ctx context.Context, healthURL string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return Unhealthy, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Waiting, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return Waiting, err
		}
		var payload healthPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			// A 200 with a non-JSON body is usually a proxy placeholder page
			// while the container starts.
			return Waiting, errors.New("health endpoint returned non-JSON body")
		}
		if strings.EqualFold(payload.Status, "healthy") {
			return Healthy, nil
		}
		return Unhealthy, errors.New("health endpoint reported status " + payload.Status)
	case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther:
		// SSO redirect: the app is up, we just are not logged in.
		return Healthy, nil
	case resp.StatusCode >= 500:
		return Waiting, errors.New("health endpoint returned " + resp.Status)
	default:
		return Waiting, errors.New("health endpoint returned " + resp.Status)
	}
}
