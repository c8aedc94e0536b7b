package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// Active is the handle of the running test returned by OnStart.
type Active struct {
	coordinator *Coordinator
	record      *ResultRecord
}

func (a *Active) Record() *ResultRecord {
	return a.record
}

// AttachFile uploads a file to the running test's result. A nil content
// reads the file at path.
func (a *Active) AttachFile(ctx context.Context, path string, content []byte) error {
	ref, err := a.coordinator.upload(ctx, path, content)
	if err != nil {
		return err
	}
	a.record.Files = append(a.record.Files, *ref)
	return nil
}

// AttachLink adds a link to the running test's result.
func (a *Active) AttachLink(name, url string) {
	a.record.Links = append(a.record.Links, slick.Link{Name: name, URL: url})
}

// Active returns the handle of the running test, or nil.
func (c *Coordinator) Active() *Active {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Coordinator) currentGroup() *TestRunGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AttachFile attaches to the running test. It does nothing when no test is running.
func (c *Coordinator) AttachFile(ctx context.Context, path string, content []byte) error {
	a := c.Active()
	if a == nil {
		return nil
	}
	return a.AttachFile(ctx, path, content)
}

// AttachLink attaches to the running test. It does nothing when no test is running.
func (c *Coordinator) AttachLink(name, url string) {
	if a := c.Active(); a != nil {
		a.AttachLink(name, url)
	}
}

// AttachFileToGroup attaches to the current test run. It does nothing
// before the first test run exists.
func (c *Coordinator) AttachFileToGroup(ctx context.Context, path string, content []byte) error {
	g := c.currentGroup()
	if g == nil || g.Run == nil {
		return nil
	}
	ref, err := c.upload(ctx, path, content)
	if err != nil {
		return err
	}
	g.Run.Files = append(g.Run.Files, *ref)
	return c.pushGroup(ctx, g)
}

// AttachLinkToGroup attaches to the current test run. It does nothing
// before the first test run exists.
func (c *Coordinator) AttachLinkToGroup(ctx context.Context, name, url string) error {
	g := c.currentGroup()
	if g == nil || g.Run == nil {
		return nil
	}
	g.Run.Links = append(g.Run.Links, slick.Link{Name: name, URL: url})
	return c.pushGroup(ctx, g)
}

func (c *Coordinator) pushGroup(ctx context.Context, g *TestRunGroup) error {
	updated, err := c.service.UpdateTestRun(ctx, g.Run)
	if err != nil {
		return &TransportError{Op: "update test run " + g.Run.ID, Err: err}
	}
	g.Run = updated
	return nil
}

func (c *Coordinator) upload(ctx context.Context, path string, content []byte) (*slick.FileReference, error) {
	if content == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", path, err)
		}
		content = data
	}
	ref, err := c.service.UploadFile(ctx, filepath.Base(path), "", content)
	if err != nil {
		return nil, &TransportError{Op: "upload " + filepath.Base(path), Err: err}
	}
	return ref, nil
}
