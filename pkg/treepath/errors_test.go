package treepath_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dan-solli/treepath/pkg/treepath"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline sentinel", context.DeadlineExceeded, treepath.ErrTypeTimeout},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), treepath.ErrTypeTimeout},
		{"timeout text", errors.New("i/o timeout"), treepath.ErrTypeTimeout},
		{"unsupported query", fmt.Errorf("%w: all-type siblings", treepath.ErrUnsupportedQuery), treepath.ErrTypeUnsupported},
		{"type not registered", fmt.Errorf("%w: Widget", treepath.ErrTypeNotRegistered), treepath.ErrTypeValidation},
		{"sqlite", errors.New("sql: database is locked"), treepath.ErrTypeDatabase},
		{"constraint", errors.New("UNIQUE constraint failed"), treepath.ErrTypeDatabase},
		{"unbound row", errors.New("row Task is not bound to a store"), treepath.ErrTypeValidation},
		{"anything else", errors.New("boom"), treepath.ErrTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, treepath.ClassifyError(tt.err))
		})
	}
}
