package runner

import (
	"context"
	"slices"

	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// TestRunGroup is the remote test run holding the results of one grouping key.
type TestRunGroup struct {
	Key      string
	Run      *slick.TestRun
	Attached bool
	Finished bool
}

// Groups returns the groups created so far, in creation order.
func (c *Coordinator) Groups() []*TestRunGroup {
	out := make([]*TestRunGroup, 0, len(c.groupOrder))
	for _, key := range c.groupOrder {
		out = append(out, c.groups[key])
	}
	return out
}

// group returns the group of key, creating its remote run on first use. The
// default group attaches to Config.AttachTestRunID when set.
func (c *Coordinator) group(ctx context.Context, key string) (*TestRunGroup, error) {
	if g, ok := c.groups[key]; ok {
		c.setCurrent(g)
		return g, nil
	}

	g := &TestRunGroup{Key: key}
	if key == "" && c.config.AttachTestRunID != "" {
		run, err := c.service.FetchTestRun(ctx, c.config.AttachTestRunID)
		if err != nil {
			return nil, &TransportError{Op: "fetch test run " + c.config.AttachTestRunID, Err: err}
		}
		g.Run = run
		g.Attached = true
	} else {
		run, err := c.service.CreateOrFetchTestRun(ctx, c.testRunSpec(key))
		if err != nil {
			return nil, &TransportError{Op: "create test run " + c.testRunName(key), Err: err}
		}
		g.Run = run
	}

	c.groups[key] = g
	c.groupOrder = append(c.groupOrder, key)
	c.setCurrent(g)
	c.logger.Info("using test run", "name", g.Run.Name, "id", g.Run.ID, "group", key, "attached", g.Attached)
	return g, nil
}

func (c *Coordinator) setCurrent(g *TestRunGroup) {
	c.mu.Lock()
	c.current = g
	c.mu.Unlock()
}

func (c *Coordinator) testRunName(key string) string {
	name := c.config.TestRunName
	if name == "" {
		name = "Tests"
		if c.config.Project != "" {
			name = c.config.Project + " tests"
		}
	}
	if key != "" {
		name += " - " + key
	}
	return name
}

func (c *Coordinator) testRunSpec(key string) slick.TestRun {
	spec := slick.TestRun{
		Name:       c.testRunName(key),
		TestPlanID: c.config.TestPlan,
		Attributes: c.config.Attributes,
	}
	if c.config.Project != "" {
		spec.Project = &slick.ProjectReference{Name: c.config.Project}
	}
	if c.config.Release != "" {
		spec.Release = &slick.NamedReference{Name: c.config.Release}
	}
	if c.config.Build != "" {
		spec.Build = &slick.NamedReference{Name: c.config.Build}
	}
	if c.config.Environment != "" {
		spec.Config = &slick.NamedReference{Name: c.config.Environment}
	}
	return spec
}

// Finalize finishes every group's remote run. An attached run is only
// finished once none of its results is still waiting for a result, including
// the results of Config.ResultIDs this invocation never declared, and in
// schedule-only mode runs stay open for the later execution. Every group is
// attempted; the first failure is returned.
func (c *Coordinator) Finalize(ctx context.Context) error {
	var firstErr error
	for _, g := range c.Groups() {
		if c.config.ScheduleOnly {
			c.logger.Info("test run scheduled", "name", g.Run.Name, "id", g.Run.ID)
			continue
		}
		if g.Finished {
			continue
		}
		if g.Attached {
			waiting, err := c.undeclared(ctx, g)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if n := c.pending(g.Key) + waiting; n > 0 {
				c.logger.Info("leaving attached test run open", "id", g.Run.ID, "pending", n)
				continue
			}
		}
		if err := c.service.FinishTestRun(ctx, g.Run.ID); err != nil {
			if firstErr == nil {
				firstErr = &TransportError{Op: "finish test run " + g.Run.ID, Err: err}
			}
			continue
		}
		g.Finished = true
		c.logger.Info("finished test run", "name", g.Run.Name, "id", g.Run.ID)
	}

	c.mu.Lock()
	c.active = nil
	c.current = nil
	c.mu.Unlock()
	return firstErr
}

// pending counts the records of group key that have no result yet.
func (c *Coordinator) pending(key string) int {
	n := 0
	for _, rec := range c.registry.All() {
		if rec.GroupKey == key && rec.Status != Finished {
			n++
		}
	}
	return n
}

// undeclared fetches the results of Config.ResultIDs that were not declared
// in this invocation and counts those of run g that are not finished.
func (c *Coordinator) undeclared(ctx context.Context, g *TestRunGroup) (int, error) {
	var ids []string
	for identity, id := range c.config.ResultIDs {
		if _, ok := c.registry.Get(identity); !ok && id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	n := 0
	for _, id := range ids {
		r, err := c.service.FetchResult(ctx, id)
		if err != nil {
			return n, &TransportError{Op: "fetch result " + id, Err: err}
		}
		if r.TestRun != nil && r.TestRun.TestRunID != "" && r.TestRun.TestRunID != g.Run.ID {
			continue
		}
		if ParseStatus(r.RunStatus) != Finished {
			n++
		}
	}
	return n, nil
}
