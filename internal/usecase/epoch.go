package usecase

// Epoch tracks which accounts a polling cycle has already handled so a
// recurring schedule does not reprocess them every tick. It is owned by the
// scheduler; the single-flight guard keeps access single-threaded.
type Epoch struct {
	number  int
	handled map[string]bool
}

// NewEpoch starts the first epoch with nothing handled.
func NewEpoch() *Epoch {
	return &Epoch{number: 1, handled: map[string]bool{}}
}

// Begin advances to the next epoch once every currently known account has
// been handled, clearing the set so the whole inventory is swept again.
func (e *Epoch) Begin(accountIDs []string) {
	if len(accountIDs) == 0 {
		return
	}
	for _, id := range accountIDs {
		if !e.handled[id] {
			return
		}
	}
	e.number++
	e.handled = map[string]bool{}
}

// Handled reports whether the account was already processed this epoch.
func (e *Epoch) Handled(id string) bool {
	return e.handled[id]
}

// MarkHandled records a successfully processed account.
func (e *Epoch) MarkHandled(id string) {
	e.handled[id] = true
}

// Number is the current epoch ordinal, starting at 1.
func (e *Epoch) Number() int {
	return e.number
}
