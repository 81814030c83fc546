package editor

// HandleEvent applies a remote change notification to the in-memory
// hierarchy and reconciles it against any active edit session for the
// affected row. Handlers are idempotent under duplicate and out-of-order
// delivery for the same entity: presence is detected by identity, never by
// sequence number. Events arriving after Close are dropped.
func (e *Editor) HandleEvent(ev Event) {
	if e.state.closed {
		e.staleEvents++
		return
	}
	switch ev.Entity {
	case EntityPart:
		e.mergePart(ev)
	case EntityBlock:
		e.mergeBlock(ev)
	}
}

// StaleEvents reports how many events were dropped after teardown.
func (e *Editor) StaleEvents() int { return e.staleEvents }

func (e *Editor) mergePart(ev Event) {
	p, ok := ev.PartPayload()
	if !ok {
		return
	}
	switch ev.Type {
	case EventInsert:
		if _, owned := e.state.partOwner[p.ID]; owned {
			return // duplicate or echo of an already-applied insert
		}
		e.state.upsertPart(p)
	case EventUpdate:
		e.state.upsertPart(p)
		e.reconcileSession(p.ID)
	case EventDelete:
		if e.state.removePart(p.ID) {
			e.state.dropSession(p.ID)
		}
	}
}

func (e *Editor) mergeBlock(ev Event) {
	b, ok := ev.BlockPayload()
	if !ok {
		return
	}
	switch ev.Type {
	case EventInsert:
		if _, exists := e.state.blocks[b.ID]; exists {
			return
		}
		e.state.upsertBlock(b)
	case EventUpdate:
		e.state.upsertBlock(b)
		e.reconcileSession(b.ID)
	case EventDelete:
		removedParts := e.state.removeBlock(b.ID)
		if removedParts != nil {
			e.state.dropSession(b.ID)
			for _, partID := range removedParts {
				e.state.dropSession(partID)
			}
		}
	}
}

// reconcileSession resolves a remote update against a local edit session for
// the same row: the remote write wins and the local pending edits are
// discarded. A session whose save is already in flight is left alone; the
// save response will settle it.
func (e *Editor) reconcileSession(rowID string) {
	sess, ok := e.state.sessions[rowID]
	if !ok {
		return
	}
	if sess.saving {
		return
	}
	e.state.dropSession(rowID)
}
