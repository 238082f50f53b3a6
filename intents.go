package arbor

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
)

// receive is the designer's single bus subscription. Messages of every type
// arrive here in publish order, so intents never overtake each other.
func (d *Designer) receive(m bus.Message) {
	if d.own(m.Payload) {
		return
	}
	err := d.Apply(m)
	if err != nil {
		d.logger.Debug("intent rejected", "type", m.Type, "err", err)
	}

	d.waitMu.Lock()
	ch, ok := d.waiting[m.Payload]
	delete(d.waiting, m.Payload)
	d.waitMu.Unlock()
	if ok {
		ch <- err
	}
}

// Submit publishes m on the designer's bus and waits until the designer has
// applied it, returning the rejection if there was one. Other subscribers
// see m like any published message.
func (d *Designer) Submit(ctx context.Context, m bus.Message) error {
	if err := bus.Validate(m); err != nil {
		return err
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return bus.ErrClosed
	}

	ch := make(chan error, 1)
	d.waitMu.Lock()
	if _, dup := d.waiting[m.Payload]; dup {
		d.waitMu.Unlock()
		return fmt.Errorf("intent %s already submitted", m.Type)
	}
	d.waiting[m.Payload] = ch
	d.waitMu.Unlock()

	forget := func() {
		d.waitMu.Lock()
		delete(d.waiting, m.Payload)
		d.waitMu.Unlock()
	}
	if err := d.bus.Publish(m); err != nil {
		forget()
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

// Apply handles one bus message. Mutation intents change the tree; UI state
// messages update selection, hover, editing, preview and scroll state.
// Messages the designer itself broadcasts are ignored.
func (d *Designer) Apply(m bus.Message) error {
	if err := bus.Validate(m); err != nil {
		return err
	}

	switch p := m.Payload.(type) {
	case *bus.InsertInstance:
		return d.Insert(p.Instance, p.Target)
	case *bus.DeleteInstance:
		return d.Delete(p.ID)
	case *bus.ReparentInstance:
		return d.Reparent(p.ID, targetOf(p))
	case *bus.CloneInstance:
		_, err := d.Clone(p.ID)
		return err
	case *bus.SetInstanceProps:
		return d.SetProps(p.ID, p.Props)
	case *bus.SetInstanceChildren:
		return d.SetChildren(p.ID, p.Children)

	case *bus.SelectInstance:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.store.Contains(p.ID) {
			d.selectLocked(p.ID, false)
		}
	case *bus.UnselectInstance:
		d.mu.Lock()
		defer d.mu.Unlock()
		d.unselectLocked(false)
	case *bus.ClickCanvas:
		d.mu.Lock()
		defer d.mu.Unlock()
		d.editing = ""
	case *bus.HoverInstance:
		if d.engine.Active() {
			return nil
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if p.ID == "" || d.store.Contains(p.ID) {
			d.hovered = p.ID
		}
	case *bus.TextEditingInstance:
		d.mu.Lock()
		defer d.mu.Unlock()
		if p.ID == "" {
			d.editing = ""
			return nil
		}
		inst, err := d.store.FindInstance(p.ID)
		if err != nil {
			return err
		}
		if d.registry.IsContentEditable(inst.Component) {
			d.editing = p.ID
			d.selectLocked(p.ID, true)
		}
	case *bus.ScrollState:
		d.mu.Lock()
		defer d.mu.Unlock()
		d.scrolling = p.Scrolling
		if p.Scrolling {
			d.hovered = ""
		}
	case *bus.PreviewMode:
		d.setPreview(p.Enabled)
	case *bus.SyncRequest:
		d.mu.Lock()
		defer d.mu.Unlock()
		d.snapshotLocked()

	case *bus.TreeChanged, *bus.DragStartInstance, *bus.DragInstance, *bus.DragEndInstance:
		// broadcast by the designer itself
	}
	return nil
}

func (d *Designer) setPreview(enabled bool) {
	if enabled {
		d.engine.Cancel()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preview = enabled
	if enabled {
		d.hovered = ""
		d.unselectLocked(true)
	}
}

// SetPreview toggles preview mode and announces it.
func (d *Designer) SetPreview(enabled bool) {
	d.setPreview(enabled)
	d.emit(&bus.PreviewMode{Enabled: enabled})
}

func targetOf(p *bus.ReparentInstance) domain.Target {
	return domain.Target{ParentID: p.ParentID, Index: p.Index}
}
