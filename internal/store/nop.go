package store

import "context"

// Nop is the account store used when no persistence is configured. Lookups
// miss and score updates are discarded.
type Nop struct{}

var _ AccountStore = Nop{}

func (Nop) FindByAccountID(context.Context, string) (Account, error) { return Account{}, ErrNotFound }
func (Nop) IncrementWin(context.Context, string) error { return nil }
func (Nop) IncrementLoss(context.Context, string) error { return nil }
func (Nop) IncrementDraw(context.Context, string) error { return nil }
