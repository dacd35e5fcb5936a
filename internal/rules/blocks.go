package rules

import "fmt"

// Installment names in the order they fall due.
const (
	InstallmentRegistration = "registration"
	InstallmentBlock1       = "block1"
	InstallmentBlock2       = "block2"
)

// MaxBlock is the highest block a program runs.
const MaxBlock = 2

// BlockFlags mirrors the per-installment paid flags stored with a fee record.
type BlockFlags struct {
	RegistrationPaid bool
	Block1Paid       bool
	Block2Paid       bool
	CurrentBlock     int
}

// InstallmentProgress lists which installments are settled. Due holds the unpaid
// installments up to and including the block the student is currently in.
type InstallmentProgress struct {
	Paid        []string `json:"paid"`
	Outstanding []string `json:"outstanding"`
	Due         []string `json:"due"`
}

// BlockProgress derives installment progress from the stored flags.
func BlockProgress(flags BlockFlags) (InstallmentProgress, error) {
	if flags.CurrentBlock < 0 || flags.CurrentBlock > MaxBlock {
		return InstallmentProgress{}, fmt.Errorf("%w: current block %d out of range 0..%d", ErrInvalidInput, flags.CurrentBlock, MaxBlock)
	}

	progress := InstallmentProgress{Paid: []string{}, Outstanding: []string{}, Due: []string{}}
	steps := []struct {
		name  string
		paid  bool
		block int
	}{
		{InstallmentRegistration, flags.RegistrationPaid, 0},
		{InstallmentBlock1, flags.Block1Paid, 1},
		{InstallmentBlock2, flags.Block2Paid, 2},
	}
	for _, step := range steps {
		if step.paid {
			progress.Paid = append(progress.Paid, step.name)
			continue
		}
		progress.Outstanding = append(progress.Outstanding, step.name)
		if step.block <= flags.CurrentBlock {
			progress.Due = append(progress.Due, step.name)
		}
	}
	return progress, nil
}
