package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/model"
)

var (
	// ErrUnknownTier is returned for a tier other than FAST, MEDIUM or SLOW
	ErrUnknownTier = errors.New("unknown verification tier")
	// ErrClosed is returned when background work is submitted after Close
	ErrClosed = errors.New("verification service closed")
)

// Config holds the tier latency bounds and defaults
type Config struct {
	// FastTimeout is the hard ceiling of the FAST tier
	FastTimeout time.Duration
	// MediumTimeout bounds one background MEDIUM run
	MediumTimeout time.Duration
	// ResultBuffer is the capacity of the MEDIUM result channel
	ResultBuffer int
	// SlowThreshold is the SLOW score cutoff used when the scope sets none.
	// Values outside [0, 1] fall back to the default.
	SlowThreshold float64
}

// DefaultConfig returns the default tier configuration
func DefaultConfig() Config {
	return Config{
		FastTimeout:   500 * time.Millisecond,
		MediumTimeout: 5 * time.Second,
		ResultBuffer:  64,
		SlowThreshold: 0.7,
	}
}

// AsyncResult is a MEDIUM result delivered in the background
type AsyncResult struct {
	RequestID string                    `json:"request_id"`
	Result    *model.VerificationResult `json:"result"`
}

// Service runs the verification tiers. Verify is stateless and safe for
// concurrent use; background MEDIUM results are published on Results.
type Service struct {
	config   Config
	fast     []Check
	medium   []Check
	analyzer SemanticAnalyzer
	logger   *slog.Logger

	results chan AsyncResult
	mu      sync.Mutex
	closed  bool
	dropped func(requestID string)
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// NewService creates the service. analyzer and extract may be nil; the SLOW
// tier then reports itself unavailable and unknown mentions are not checked.
func NewService(config Config, analyzer SemanticAnalyzer, extract pipeline.MentionExtractFunc, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if config.FastTimeout <= 0 {
		config.FastTimeout = defaults.FastTimeout
	}
	if config.MediumTimeout <= 0 {
		config.MediumTimeout = defaults.MediumTimeout
	}
	if config.ResultBuffer <= 0 {
		config.ResultBuffer = defaults.ResultBuffer
	}
	if config.SlowThreshold < 0 || config.SlowThreshold > 1 {
		config.SlowThreshold = defaults.SlowThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:   config,
		fast:     FastChecks(),
		medium:   MediumChecks(extract),
		analyzer: analyzer,
		logger:   logger,
		results:  make(chan AsyncResult, config.ResultBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Verify runs one tier synchronously. Check failures never surface as an
// error; only an unknown tier does.
func (s *Service) Verify(ctx context.Context, tier model.Tier, text string, scope *model.VerificationScope) (*model.VerificationResult, error) {
	if scope == nil {
		scope = &model.VerificationScope{}
	}

	switch tier {
	case model.TierFast:
		return s.runChecks(ctx, model.TierFast, s.fast, s.config.FastTimeout, text, scope), nil
	case model.TierMedium:
		return s.runChecks(ctx, model.TierMedium, s.medium, s.config.MediumTimeout, text, scope), nil
	case model.TierSlow:
		return s.verifySlow(ctx, text, scope), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
}

// VerifyGeneration runs FAST synchronously and then schedules MEDIUM for the
// same generation, so its result is published after the FAST result returned.
func (s *Service) VerifyGeneration(ctx context.Context, requestID string, text string, scope *model.VerificationScope) (*model.VerificationResult, error) {
	fast, err := s.Verify(ctx, model.TierFast, text, scope)
	if err != nil {
		return nil, err
	}
	return fast, s.Submit(requestID, text, scope)
}

// Submit schedules a background MEDIUM run. The result is sent on Results
// without blocking; it is dropped if the buffer is full. scope must not be
// modified until the result arrives.
func (s *Service) Submit(requestID string, text string, scope *model.VerificationScope) error {
	if scope == nil {
		scope = &model.VerificationScope{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result := s.runChecks(s.ctx, model.TierMedium, s.medium, s.config.MediumTimeout, text, scope)
		s.deliver(AsyncResult{RequestID: requestID, Result: result})
	}()
	return nil
}

func (s *Service) deliver(result AsyncResult) {
	select {
	case s.results <- result:
	default:
		s.logger.Warn("Dropping background verification result, buffer full", slog.String("request_id", result.RequestID))
		s.mu.Lock()
		dropped := s.dropped
		s.mu.Unlock()
		if dropped != nil {
			dropped(result.RequestID)
		}
	}
}

// OnDropped registers fn to be called with the request id of every MEDIUM
// result dropped because Results was full
func (s *Service) OnDropped(fn func(requestID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = fn
}

// Results is the channel MEDIUM results are published on. It is closed by Close.
func (s *Service) Results() <-chan AsyncResult {
	return s.results
}

// Close cancels in-flight background runs, waits for them and closes Results
func (s *Service) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
		close(s.results)
	})
}

// runChecks evaluates checks in order until the timeout fires. Issues found
// before the timeout are kept and the result is marked incomplete.
func (s *Service) runChecks(ctx context.Context, tier model.Tier, checks []Check, timeout time.Duration, text string, scope *model.VerificationScope) *model.VerificationResult {
	start := time.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	issues := []model.VerificationIssue{}
	complete := true
checks:
	for _, check := range checks {
		if ctx.Err() != nil {
			complete = false
			break
		}

		done := make(chan []model.VerificationIssue, 1)
		go func() {
			done <- runCheck(ctx, check, text, scope)
		}()

		select {
		case found := <-done:
			for _, issue := range found {
				if issue.Check == CheckUnavailable {
					s.logger.Warn("Verification check unavailable", slog.String("tier", string(tier)), slog.String("check", check.Name), slog.String("message", issue.Message))
				}
			}
			issues = append(issues, found...)
		case <-ctx.Done():
			complete = false
			break checks
		}
	}
	if complete && ctx.Err() != nil {
		complete = false
	}
	if !complete {
		s.logger.Warn("Verification tier cut short", slog.String("tier", string(tier)), slog.Int("issues", len(issues)))
	}

	return model.NewVerificationResult(tier, issues, time.Since(start), complete)
}

type analysisOutcome struct {
	analysis *model.SemanticAnalysis
	err      error
}

// verifySlow delegates to the analyzer. Cancellation returns no issues and
// an incomplete result.
func (s *Service) verifySlow(ctx context.Context, text string, scope *model.VerificationScope) *model.VerificationResult {
	start := time.Now()
	if s.analyzer == nil {
		issue := unavailable(CheckSemanticScore, errors.New("no semantic analyzer configured"))
		return model.NewVerificationResult(model.TierSlow, []model.VerificationIssue{issue}, time.Since(start), true)
	}

	threshold := s.config.SlowThreshold
	if scope.SlowThreshold != nil {
		threshold = *scope.SlowThreshold
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan analysisOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- analysisOutcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		analysis, err := s.analyzer.Analyze(ctx, text, scope)
		done <- analysisOutcome{analysis: analysis, err: err}
	}()

	select {
	case <-ctx.Done():
		return model.NewVerificationResult(model.TierSlow, nil, time.Since(start), false)
	case outcome := <-done:
		if ctx.Err() != nil {
			return model.NewVerificationResult(model.TierSlow, nil, time.Since(start), false)
		}
		if outcome.err == nil && outcome.analysis == nil {
			outcome.err = errors.New("analyzer returned no analysis")
		}
		if outcome.err != nil {
			s.logger.Warn("Semantic analysis failed", slog.String("error", outcome.err.Error()))
			issue := unavailable(CheckSemanticScore, outcome.err)
			return model.NewVerificationResult(model.TierSlow, []model.VerificationIssue{issue}, time.Since(start), true)
		}
		return model.NewVerificationResult(model.TierSlow, analysisIssues(text, outcome.analysis, threshold), time.Since(start), true)
	}
}
