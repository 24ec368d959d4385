package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"

	"github.com/routelens/routelens/internal/core"
	apperrors "github.com/routelens/routelens/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	upstreamFailure := apperrors.FromLookup(context.Background(), &core.LookupResult{
		Query:     "8.8.8.8",
		Kind:      core.ResultKindError,
		Error:     "timeout after 8000ms",
		ErrorKind: core.ErrorKindUpstream,
	})

	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(upstreamFailure))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(apperrors.NewConfigInvalidError("bad ttl")))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(apperrors.NewInvalidInputError("empty query")))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(errors.New("boom")))
}
