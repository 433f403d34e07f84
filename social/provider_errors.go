package social

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
)

// ProviderError describes a failed call to a provider endpoint.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	detail := e.Description
	if detail == "" {
		detail = e.Code
	}
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		return fmt.Sprintf("%s %s failed", e.Provider, e.Operation)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, detail)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err from an oauth2 call, keeping the status and
// error code the token endpoint reported.
func NewProviderError(provider, operation string, err error) *ProviderError {
	perr := &ProviderError{Provider: provider, Operation: operation, Err: err}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil {
			perr.Status = rerr.Response.StatusCode
		}
		perr.Code = rerr.ErrorCode
		perr.Description = rerr.ErrorDescription
	}
	return perr
}

// wrapProviderError clones base with err as source and the provider
// details as metadata.
func wrapProviderError(base *goerrors.Error, provider, operation string, err error) error {
	meta := map[string]any{"provider": provider, "operation": operation}

	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Status != 0 {
			meta["status"] = perr.Status
		}
		if perr.Code != "" {
			meta["code"] = perr.Code
		}
		if perr.Description != "" {
			meta["description"] = perr.Description
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	out := base.Clone()
	out.Source = err
	return out.WithMetadata(meta)
}
