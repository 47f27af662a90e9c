package pgutils

import (
	"errors"
	"fmt"
	"testing"
)

func TestContainsErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			code: CodeUniqueViolation,
			want: false,
		},
		{
			name: "error contains code directly",
			err:  errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"),
			code: CodeUniqueViolation,
			want: true,
		},
		{
			name: "error contains SQLSTATE prefix",
			err:  errors.New("pq: SQLSTATE 23505 duplicate key"),
			code: CodeUniqueViolation,
			want: true,
		},
		{
			name: "error does not contain code",
			err:  errors.New("some other error"),
			code: CodeUniqueViolation,
			want: false,
		},
		{
			name: "empty error message",
			err:  errors.New(""),
			code: CodeUniqueViolation,
			want: false,
		},
		{
			name: "different code in message",
			err:  errors.New("SQLSTATE 23503 foreign key violation"),
			code: CodeUniqueViolation,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := containsErrorCode(tt.err, tt.code)
			if got != tt.want {
				t.Errorf("containsErrorCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "unique violation with SQLSTATE",
			err:  errors.New("ERROR: duplicate key value (SQLSTATE 23505)"),
			want: true,
		},
		{
			name: "foreign key violation - not unique",
			err:  errors.New("SQLSTATE 23503"),
			want: false,
		},
		{
			name: "generic error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "driver error format",
			err:  fmt.Errorf("pq: duplicate key value violates unique constraint \"tasks_pkey\" (SQLSTATE 23505)"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUniqueViolation(tt.err)
			if got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "foreign key violation with SQLSTATE",
			err:  errors.New("ERROR: insert or update violates foreign key constraint (SQLSTATE 23503)"),
			want: true,
		},
		{
			name: "unique violation - not foreign key",
			err:  errors.New("SQLSTATE 23505"),
			want: false,
		},
		{
			name: "generic error",
			err:  errors.New("timeout"),
			want: false,
		},
		{
			name: "dependency edge to a missing task",
			err:  fmt.Errorf("pq: insert or update on table \"task_dependencies\" violates foreign key constraint \"task_dependencies_depends_on_id_fkey\" (SQLSTATE 23503)"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsForeignKeyViolation(tt.err)
			if got != tt.want {
				t.Errorf("IsForeignKeyViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
