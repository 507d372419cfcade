// SPDX-License-Identifier: GPL-3.0-or-later

// Package fanout runs one task per backend account on a shared worker pool
// and gathers the results in completion order. A failing, panicking or (for
// the bounded variant) expired task degrades to a no-result slot; it never
// aborts its siblings or the aggregate call.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unifiedmail/go-inbox-unify/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoContribution is returned by a task that ran fine but has nothing to
// offer for this operation (e.g. the account has no folder mapped to the
// requested role). It yields a no-result slot without a warning log.
var ErrNoContribution = errors.New("account contributes no result")

// Task is one backend operation against one account. Run owns every
// resource it acquires; in particular a backend connection acquired inside
// Run must be released before Run returns, on all exit paths.
type Task[T any] struct {
	Account domain.AccountDescriptor
	Run     func() (T, error)
}

// Result is one task's contribution. OK is false for the no-result
// sentinel: the account failed, timed out or had nothing to contribute.
type Result[T any] struct {
	Account domain.AccountDescriptor
	Value   T
	OK      bool
}

// Collect submits all tasks to the pool and blocks until every one of them
// has completed. Results arrive in completion order; callers needing
// positional data must use Result.Account. Interruption via ctx surfaces as
// an error, the already-submitted tasks still run to completion.
func Collect[T any](ctx context.Context, pool *Pool, l *logrus.Logger, tasks []Task[T]) ([]Result[T], error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	start := time.Now()
	callID := uuid.NewString()

	done := make(chan Result[T], len(tasks))
	for _, t := range tasks {
		go execute(pool, l, callID, t, done)
	}

	results := make([]Result[T], 0, len(tasks))
	for i := 0; i < len(tasks); i++ {
		select {
		case r := <-done:
			results = append(results, r)
		case <-ctx.Done():
			return nil, fmt.Errorf("fan-out interrupted: %w", ctx.Err())
		}
	}

	l.WithFields(logrus.Fields{"call": callID, "tasks": len(tasks), "duration": time.Since(start)}).Debug("Gathered fan-out results")
	return results, nil
}

// CollectBounded behaves like Collect but caps the wait per task. A task
// that has not delivered within perTask becomes a no-result slot; the task
// itself is not cancelled and its siblings continue unaffected.
func CollectBounded[T any](ctx context.Context, pool *Pool, l *logrus.Logger, tasks []Task[T], perTask time.Duration) ([]Result[T], error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	start := time.Now()
	callID := uuid.NewString()

	// One channel per task so an expired slot cannot swallow a sibling's
	// result.
	chans := make([]chan Result[T], len(tasks))
	for i, t := range tasks {
		chans[i] = make(chan Result[T], 1)
		go execute(pool, l, callID, t, chans[i])
	}

	results := make([]Result[T], 0, len(tasks))
	for i, t := range tasks {
		timer := time.NewTimer(perTask)
		select {
		case r := <-chans[i]:
			results = append(results, r)
		case <-timer.C:
			l.WithFields(logrus.Fields{
				"call":    callID,
				"account": t.Account.ID,
				"server":  t.Account.Server,
				"login":   t.Account.Login,
				"timeout": perTask,
				"error":   fmt.Errorf("no answer within %v: %w", perTask, domain.ErrTimeout),
			}).Warn("Account did not answer in time, contributing no result")
			results = append(results, Result[T]{Account: t.Account, OK: false})
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("fan-out interrupted: %w", ctx.Err())
		}
		timer.Stop()
	}

	l.WithFields(logrus.Fields{"call": callID, "tasks": len(tasks), "duration": time.Since(start)}).Debug("Gathered bounded fan-out results")
	return results, nil
}

// execute runs one task on the pool and delivers exactly one result. Any
// error or panic is converted to the no-result sentinel and logged with the
// account's diagnostic identity.
func execute[T any](pool *Pool, l *logrus.Logger, callID string, t Task[T], out chan<- Result[T]) {
	res := Result[T]{Account: t.Account, OK: false}
	defer func() {
		if r := recover(); r != nil {
			l.WithFields(logrus.Fields{
				"call":    callID,
				"account": t.Account.ID,
				"server":  t.Account.Server,
				"login":   t.Account.Login,
				"panic":   r,
			}).Error("Account task panicked, contributing no result")
			res = Result[T]{Account: t.Account, OK: false}
		}
		out <- res
	}()

	pool.acquire()
	defer pool.release()

	value, err := t.Run()
	if err != nil {
		if !errors.Is(err, ErrNoContribution) {
			l.WithFields(logrus.Fields{
				"call":    callID,
				"account": t.Account.ID,
				"server":  t.Account.Server,
				"login":   t.Account.Login,
				"error":   err,
			}).Warn("Account task failed, contributing no result")
		}
		return
	}

	res.Value = value
	res.OK = true
}
