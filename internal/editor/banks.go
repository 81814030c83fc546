package editor

import (
	"sort"

	"romgrid/pkg/layout"
)

// Banks returns the sorted list of banks containing at least one block.
// Banks with zero blocks are omitted.
func (e *Editor) Banks() []int {
	seen := make(map[int]struct{})
	for _, b := range e.state.blocks {
		seen[b.Bank()] = struct{}{}
	}
	banks := make([]int, 0, len(seen))
	for bank := range seen {
		banks = append(banks, bank)
	}
	sort.Ints(banks)
	return banks
}

// BlocksInBank returns clones of the blocks in the given bank, sorted by
// start address ascending. Blocks with no computed start sort as address 0.
func (e *Editor) BlocksInBank(bank int) []Block {
	var out []Block
	for _, b := range e.state.blocks {
		if b.Bank() == bank {
			out = append(out, layout.CloneBlock(*b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, _, _ := out[i].Range()
		sj, _, _ := out[j].Range()
		if si != sj {
			return si < sj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CurrentBank returns the active bank, clamped to the available-bank list.
// With no blocks at all it reports bank 0.
func (e *Editor) CurrentBank() int {
	banks := e.Banks()
	if len(banks) == 0 {
		return 0
	}
	if !e.state.bankSet {
		return banks[0]
	}
	// The selected bank may have emptied out under remote deletes; snap to
	// the nearest remaining bank without wrapping.
	cur := e.state.bank
	nearest := banks[0]
	for _, bank := range banks {
		if bank == cur {
			return cur
		}
		if bank < cur {
			nearest = bank
		}
	}
	return nearest
}

// SelectBank activates a bank. It reports false when the bank holds no
// blocks.
func (e *Editor) SelectBank(bank int) bool {
	for _, available := range e.Banks() {
		if available == bank {
			e.state.bank = bank
			e.state.bankSet = true
			e.state.touch()
			return true
		}
	}
	return false
}

// NextBank moves to the next available bank, clamping at the end.
func (e *Editor) NextBank() int {
	banks := e.Banks()
	cur := e.CurrentBank()
	for _, bank := range banks {
		if bank > cur {
			e.state.bank = bank
			e.state.bankSet = true
			e.state.touch()
			return bank
		}
	}
	return cur
}

// PrevBank moves to the previous available bank, clamping at the start.
func (e *Editor) PrevBank() int {
	banks := e.Banks()
	cur := e.CurrentBank()
	prev := cur
	for _, bank := range banks {
		if bank >= cur {
			break
		}
		prev = bank
	}
	if prev != cur {
		e.state.bank = prev
		e.state.bankSet = true
		e.state.touch()
	}
	return prev
}
