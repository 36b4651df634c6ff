package domain

// SelectActive returns the most recent walk that has not completed, or nil. walks must be
// ordered oldest first, as every store snapshot is.
func SelectActive(walks []*Walk) *Walk {
	for i := len(walks) - 1; i >= 0; i-- {
		if walks[i] != nil && walks[i].Active() {
			return walks[i]
		}
	}
	return nil
}
