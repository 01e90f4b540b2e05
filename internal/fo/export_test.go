package fo

// DestLockCount reports the live per-destination lock entries.
func (c *Coordinator) DestLockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.destLocks)
}
