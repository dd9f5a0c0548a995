package decoding

// HeldLocks counts the per transaction locks still in the map.
func (this *EVMTransactionDecoder) HeldLocks() int {
	this.locksMu.Lock()
	defer this.locksMu.Unlock()
	return len(this.locks)
}
