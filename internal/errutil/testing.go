// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err carries the given oops code. The code
// checked is the outermost one, matching what reaches the API layer.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "error %v (%T) carries no code", err, err)
	assert.Equal(t, code, oopsErr.Code())
}
