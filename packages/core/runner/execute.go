package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/abdul-hamid-achik/snot/packages/rehydrate"
)

// ExecuteOptions tune the in-process host.
type ExecuteOptions struct {
	// Rehydrator replays cases that have no Run body, from their Replay
	// descriptor or from the descriptor recorded in their result attributes.
	Rehydrator *rehydrate.Rehydrator
	// Retries reruns failing cases up to this many times.
	Retries int
}

// Execute is the in-process host: it prepares root, runs every case through
// the lifecycle hooks and finalizes. In schedule-only mode it stops after
// preparing. Only transport errors are returned.
func Execute(ctx context.Context, c *Coordinator, root Node, opts ExecuteOptions) error {
	if err := c.Prepare(ctx, root); err != nil {
		return err
	}
	if c.config.ScheduleOnly {
		c.logger.Info("results scheduled", "count", c.registry.Len())
		return c.Finalize(ctx)
	}

	for _, tc := range Flatten(root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := executeCase(ctx, c, tc, opts); err != nil {
			return err
		}
	}
	return c.Finalize(ctx)
}

func executeCase(ctx context.Context, c *Coordinator, tc *Case, opts ExecuteOptions) error {
	if !c.BeforeExecution(tc.Identity) {
		return c.OnError(ctx, tc.Identity, ReasonSkip, false, &FailureInfo{Message: "schedule only"})
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.MarkRetry(tc.Identity)
		}
		if _, err := c.OnStart(ctx, tc.Identity); err != nil {
			return err
		}

		var attrs map[string]string
		if rec, ok := c.Record(tc.Identity); ok {
			attrs = rec.Attributes
		}
		outcome, failure := runBody(ctx, tc, attrs, opts.Rehydrator)
		if outcome.Failed() && attempt < opts.Retries {
			c.logger.Info("retrying", "test", tc.Identity, "attempt", attempt+1, "outcome", outcome)
			if err := c.OnFinish(ctx, tc.Identity, outcome, failure); err != nil {
				return err
			}
			continue
		}
		return c.OnFinish(ctx, tc.Identity, outcome, failure)
	}
}

// runBody calls the case and classifies how it ended. A case without a body
// is replayed from tc.Replay, else from the descriptor in attrs.
func runBody(ctx context.Context, tc *Case, attrs map[string]string, rh *rehydrate.Rehydrator) (outcome Outcome, failure *FailureInfo) {
	defer func() {
		if p := recover(); p != nil {
			outcome = BrokenTest
			failure = &FailureInfo{Kind: "panic", Message: fmt.Sprint(p), Trace: string(debug.Stack())}
		}
	}()

	var err error
	switch {
	case tc.Run != nil:
		err = tc.Run(ctx)
	case rh != nil && tc.Replay != nil:
		err = rh.Invoke(ctx, *tc.Replay)
	case rh != nil && rehydrate.HasDescriptor(attrs):
		d, derr := rehydrate.FromAttributes(attrs)
		if derr != nil {
			return BrokenTest, &FailureInfo{Kind: "rehydration", Message: derr.Error()}
		}
		err = rh.Invoke(ctx, d)
	default:
		return BrokenTest, &FailureInfo{Kind: "error", Message: "test has no body to run"}
	}
	return classifyError(err)
}

func classifyError(err error) (Outcome, *FailureInfo) {
	if err == nil {
		return Pass, nil
	}

	var abnormal *AbnormalError
	if errors.As(err, &abnormal) {
		outcome := ClassifyAbnormalOutcome(abnormal.Reason, abnormal.NotTested)
		if outcome == PassedOnRetry {
			return outcome, nil
		}
		return outcome, &FailureInfo{Message: abnormal.Message}
	}

	var rerr *rehydrate.RehydrationError
	if errors.As(err, &rerr) {
		return BrokenTest, &FailureInfo{Kind: "rehydration", Message: rerr.Error()}
	}
	return Fail, &FailureInfo{Message: err.Error()}
}
