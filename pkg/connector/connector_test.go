// pkg/connector/connector_test.go
package connector

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection refused", err: errors.New("dial tcp 10.0.0.5:5432: connection refused"), want: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "broken pipe", err: errors.New("write: broken pipe"), want: true},
		{name: "timeout", err: errors.New("pq: canceling statement due to statement timeout"), want: true},
		{name: "deadline exceeded", err: errors.New("context deadline exceeded"), want: true},
		{name: "too many connections", err: errors.New("pq: sorry, too many connections"), want: true},
		{name: "deadlock", err: errors.New("pq: deadlock detected"), want: true},
		{name: "wrapped transient error", err: fmt.Errorf("flush: %w", errors.New("i/o timeout")), want: true},
		{name: "constraint violation", err: errors.New("pq: null value in column violates not-null constraint"), want: false},
		{name: "syntax error", err: errors.New("pq: syntax error at or near SELECT"), want: false},
		{name: "permission denied", err: errors.New("pq: permission denied for table transactions"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
