package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrRetrievalFailure        = errors.New("retrieval failure")
	ErrTemporary               = errors.New("temporary failure")
	ErrNotFound                = errors.New("not found")

	// ErrRerankDegraded is never returned to callers; it tags log records when
	// the cross-encoder failed and similarity order was kept.
	ErrRerankDegraded = errors.New("rerank degraded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
