package services

import (
	"context"
	"strings"
	"time"
)

// IdentityProber is a lightweight call that succeeds only with usable
// credentials.
type IdentityProber interface {
	ProbeIdentity(ctx context.Context) (string, error)
}

// CredentialStatus is computed once at startup and handed to the
// orchestrator.
type CredentialStatus struct {
	Available bool
	Detail    string
}

func ProbeCredentials(ctx context.Context, prober IdentityProber, timeout time.Duration) CredentialStatus {
	if prober == nil {
		return CredentialStatus{Detail: "no identity prober configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	identity, err := prober.ProbeIdentity(ctx)
	if err != nil {
		return CredentialStatus{Detail: "credentials issue: " + err.Error()}
	}
	return CredentialStatus{Available: true, Detail: "credentials configured for " + identity}
}

// CombineCredentials merges the probes of every backend a turn may call.
// Live answers need all of them, so one failure makes the result unavailable.
func CombineCredentials(statuses ...CredentialStatus) CredentialStatus {
	if len(statuses) == 0 {
		return CredentialStatus{Detail: "no identity prober configured"}
	}

	combined := CredentialStatus{Available: true}
	details := make([]string, 0, len(statuses))
	for _, s := range statuses {
		combined.Available = combined.Available && s.Available
		details = append(details, s.Detail)
	}
	combined.Detail = strings.Join(details, "; ")
	return combined
}
