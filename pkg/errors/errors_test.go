package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
)

// ---------------------------------------------------------------------------
// New / Errorf / Wrap
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := sperrors.New(
		sperrors.CodeQueryStructureInvalid,
		"variable shared by sibling OPTIONAL blocks",
		sperrors.FieldVariable("x"),
	)

	require.Error(t, err)
	assert.Equal(t, sperrors.CodeQueryStructureInvalid, sperrors.CodeOf(err))
	assert.True(t, sperrors.IsStructure(err))
	assert.Equal(t, "x", sperrors.FieldsOf(err)["variable"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := sperrors.Errorf(sperrors.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, sperrors.CodeStoreDatabaseFailure, sperrors.CodeOf(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, sperrors.Wrap(nil, sperrors.CodeStoreOpenFailure, "open"))
	assert.NoError(t, sperrors.Wrapf(nil, sperrors.CodeStoreOpenFailure, "open %s", "x"))
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"unsupported construct", sperrors.New(sperrors.CodeQueryConstructUnsupported, "x"), sperrors.IsUnsupported, true},
		{"unsupported format", sperrors.New(sperrors.CodeQueryResultFormatUnsupported, "x"), sperrors.IsUnsupported, true},
		{"type mismatch", sperrors.New(sperrors.CodeQueryFilterTypeMismatch, "x"), sperrors.IsTypeMismatch, true},
		{"unbound", sperrors.New(sperrors.CodeQueryFilterUnbound, "x"), sperrors.IsUnbound, true},
		{"unbound is not mismatch", sperrors.New(sperrors.CodeQueryFilterUnbound, "x"), sperrors.IsTypeMismatch, false},
		{"syntax is invalid input", sperrors.New(sperrors.CodeQueryParseInvalidSyntax, "x"), sperrors.IsInvalidInput, true},
		{"plain error has no code", fmt.Errorf("plain"), sperrors.IsUnsupported, false},
		{"nil", nil, sperrors.IsStructure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestCodeSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", sperrors.New(sperrors.CodeQueryConstructUnsupported, "inner"))
	assert.True(t, sperrors.IsUnsupported(err))
}
