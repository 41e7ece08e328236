package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/placeworker/logger"
)

// state tracks where a scrape run is in its retry lifecycle
type state int

const (
	stateIdle state = iota
	stateAttempting
	stateRetrying
	stateSucceeded
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAttempting:
		return "attempting"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	case stateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// nextState is the pure transition function of the retry lifecycle. An
// attempt either produced records, gets another try, or ends the run.
func nextState(current state, gotRecords bool, attempt, maxAttempts int) state {
	switch current {
	case stateIdle, stateRetrying:
		return stateAttempting
	case stateAttempting:
		if gotRecords {
			return stateSucceeded
		}
		if attempt < maxAttempts {
			return stateRetrying
		}
		return stateExhausted
	default:
		return current
	}
}

// Status classifies the outcome of a whole scrape run
type Status string

const (
	// StatusSucceeded means at least one attempt produced records
	StatusSucceeded Status = "succeeded"
	// StatusEmpty means every attempt completed cleanly but found nothing
	StatusEmpty Status = "empty"
	// StatusExhausted means every attempt ended in an error
	StatusExhausted Status = "exhausted"
)

// Result is the outcome of one scrape run
type Result struct {
	Status   Status
	Records  []PlaceRecord
	Attempts int
}

// Scraper drives scrape attempts against a site strategy, retrying whole
// sessions on failure. It never propagates errors to callers; a run that
// produces nothing is reported through the Result status instead.
type Scraper struct {
	sessions    SessionFactory
	strategy    Strategy
	maxAttempts int
	backoffUnit time.Duration
	log         *logger.Logger
}

// NewScraper creates a scraper with the production retry policy
func NewScraper(sessions SessionFactory, strategy Strategy) *Scraper {
	return &Scraper{
		sessions:    sessions,
		strategy:    strategy,
		maxAttempts: 2,
		backoffUnit: 5 * time.Second,
		log:         logger.ForScraper(),
	}
}

// NewScraperWithPolicy creates a scraper with an explicit retry policy
func NewScraperWithPolicy(sessions SessionFactory, strategy Strategy, maxAttempts int, backoffUnit time.Duration) *Scraper {
	s := NewScraper(sessions, strategy)
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	s.backoffUnit = backoffUnit
	return s
}

// Scrape runs a full scrape and returns whatever records it produced.
// The slice is never nil and the call never fails.
func (sc *Scraper) Scrape(ctx context.Context) []PlaceRecord {
	return sc.ScrapeResult(ctx).Records
}

// ScrapeResult runs a full scrape with retries and reports the outcome
func (sc *Scraper) ScrapeResult(ctx context.Context) Result {
	var (
		current  = stateIdle
		attempt  int
		lastErr  error
		anyError bool
	)

	for {
		current = nextState(current, false, attempt, sc.maxAttempts)
		if current != stateAttempting {
			break
		}
		attempt++

		if attempt > 1 {
			// Linear backoff: wait longer before each later attempt
			wait := sc.backoffUnit * time.Duration(attempt-1)
			sc.log.Info().
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("Backing off before retry")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				sc.log.Warn().Err(ctx.Err()).Msg("Scrape cancelled during backoff")
				return Result{Status: StatusExhausted, Records: []PlaceRecord{}, Attempts: attempt - 1}
			}
		}

		records, err := sc.runAttempt(ctx, attempt)
		if err != nil {
			anyError = true
			lastErr = err
			if isTimeout(err) {
				sc.log.Error().Err(err).Int("attempt", attempt).Msg("Attempt timed out")
			} else {
				sc.log.Error().Err(err).Int("attempt", attempt).Msg("Attempt failed")
			}
		} else if len(records) == 0 {
			// An empty harvest is indistinguishable from silent breakage, so
			// it gets the same retry treatment as an error.
			sc.log.Warn().Int("attempt", attempt).Msg("Attempt produced no records")
		}

		current = nextState(stateAttempting, len(records) > 0, attempt, sc.maxAttempts)
		if current == stateSucceeded {
			sc.log.Info().
				Int("attempt", attempt).
				Int("records", len(records)).
				Msg("Scrape succeeded")
			return Result{Status: StatusSucceeded, Records: records, Attempts: attempt}
		}
		if current == stateExhausted {
			break
		}
	}

	status := StatusEmpty
	if anyError {
		status = StatusExhausted
	}
	sc.log.Error().
		Int("attempts", attempt).
		Err(lastErr).
		Str("status", string(status)).
		Msg("Scrape exhausted all attempts")
	return Result{Status: status, Records: []PlaceRecord{}, Attempts: attempt}
}

// ScrapeAsync runs the scrape in its own goroutine and delivers the result
// on the returned channel.
func (sc *Scraper) ScrapeAsync(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- sc.ScrapeResult(ctx)
	}()
	return ch
}

// runAttempt acquires a fresh session, executes the strategy and releases
// the session on every exit path, panics included.
func (sc *Scraper) runAttempt(ctx context.Context, attempt int) (records []PlaceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("panic during attempt %d: %v", attempt, r)
		}
	}()

	session, err := sc.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Release()

	sc.log.Debug().Int("attempt", attempt).Msg("Session acquired, executing strategy")
	return sc.strategy.Execute(ctx, session)
}

// isTimeout distinguishes deadline failures so they can be logged as such
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
