package async

import (
	"context"
	"errors"
	"strings"
)

// Task is one unit of work run by [All] or [Any].
type Task[T any] func(ctx context.Context) (T, error)

// AggregateError reports that every task given to [Any] failed.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "async: no task succeeded"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		if err == nil {
			continue
		}
		parts = append(parts, err.Error())
	}
	return "async: all tasks failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every task error to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

type outcome[T any] struct {
	index int
	value T
	err   error
}

func start[T any](ctx context.Context, tasks []Task[T]) <-chan outcome[T] {
	out := make(chan outcome[T], len(tasks))
	for i, task := range tasks {
		go func(i int, task Task[T]) {
			if task == nil {
				out <- outcome[T]{index: i, err: errors.New("async: nil task")}
				return
			}
			v, err := task(ctx)
			out <- outcome[T]{index: i, value: v, err: err}
		}(i, task)
	}
	return out
}

// All runs every task concurrently and returns their results in task order.
//
// The first task error is returned as soon as it is observed; the context given to the
// other tasks is cancelled and All does not wait for them.
func All[T any](ctx context.Context, tasks ...Task[T]) ([]T, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]T, len(tasks))
	outcomes := start(ctx, tasks)
	for pending := len(tasks); pending > 0; pending-- {
		o := <-outcomes
		if o.err != nil {
			return nil, o.err
		}
		results[o.index] = o.value
	}
	return results, nil
}

// Any runs every task concurrently and returns the first successful result.
//
// When every task fails, Any returns an [*AggregateError] listing the failures in task order.
func Any[T any](ctx context.Context, tasks ...Task[T]) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, &AggregateError{}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(tasks))
	outcomes := start(ctx, tasks)
	for pending := len(tasks); pending > 0; pending-- {
		o := <-outcomes
		if o.err == nil {
			return o.value, nil
		}
		errs[o.index] = o.err
	}
	return zero, &AggregateError{Errors: errs}
}
