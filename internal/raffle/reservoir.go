package raffle

import (
	"fmt"
	"strconv"

	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Source draws uniform integers. *prng.Prng satisfies it.
type Source interface {
	Uniform(n uint64) uint64
}

// Reservoir is the dense list of one collection's unredeemed winners in a
// round. winners[i] holds a token id and map[id] holds i, for every i below
// Count. Tokens are never drawn twice for a collection, in any round.
type Reservoir struct {
	t     *store.Txn
	coll  Collection
	round uint16
	// Count is the number of unredeemed winners.
	Count uint32
}

// OpenReservoir binds a reservoir holding count winners.
func OpenReservoir(t *store.Txn, coll Collection, round uint16, count uint32) *Reservoir {
	return &Reservoir{t: t, coll: coll, round: round, Count: count}
}

func drawnKey(coll Collection, id string) []byte {
	return store.Key(store.PrefixDrawn, store.U8(uint8(coll)), store.Str(id))
}

func (r *Reservoir) winnerKey(idx uint32) []byte {
	return store.Key(store.PrefixWinner, store.U8(uint8(r.coll)), store.U16(r.round), store.U32(idx))
}

func (r *Reservoir) mapKey(id string) []byte {
	return store.Key(store.PrefixWinnerMap, store.U8(uint8(r.coll)), store.U16(r.round), store.Str(id))
}

// Drawn counts the tokens of coll drawn in every round so far.
func Drawn(t *store.Txn, coll Collection) (uint32, error) {
	kvs, err := t.Scan(store.Key(store.PrefixDrawn, store.U8(uint8(coll))))
	if err != nil {
		return 0, err
	}
	return uint32(len(kvs)), nil
}

// Draw adds n new winners picked from ids modifier..modifier+tokens-1 and
// returns them in draw order.
func (r *Reservoir) Draw(src Source, n, tokens, modifier uint32) ([]string, error) {
	if n == 0 {
		return []string{}, nil
	}
	drawn, err := Drawn(r.t, r.coll)
	if err != nil {
		return nil, err
	}
	if uint64(drawn)+uint64(n) > uint64(tokens) {
		return nil, apierror.LimitExceeded(fmt.Sprintf("Only %d tokens remain undrawn", uint64(tokens)-min(uint64(drawn), uint64(tokens))))
	}
	picked := make([]string, 0, n)
	for uint32(len(picked)) < n {
		id := strconv.FormatUint(src.Uniform(uint64(tokens))+uint64(modifier), 10)
		_, seen, err := r.t.Get(drawnKey(r.coll, id))
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}
		if err := store.Save(r.t, drawnKey(r.coll, id), true); err != nil {
			return nil, err
		}
		if err := store.Save(r.t, r.mapKey(id), r.Count); err != nil {
			return nil, err
		}
		if err := store.Save(r.t, r.winnerKey(r.Count), id); err != nil {
			return nil, err
		}
		r.Count++
		picked = append(picked, id)
	}
	return picked, nil
}

// Consume removes id from the winners, moving the last winner into its
// slot. It reports whether id was an unredeemed winner.
func (r *Reservoir) Consume(id string) (bool, error) {
	idx, ok, err := store.MayLoad[uint32](r.t, r.mapKey(id))
	if err != nil || !ok {
		return false, err
	}
	if r.Count == 0 {
		return false, apierror.StorageCorrupt("Counts storage is corrupt")
	}
	store.Remove(r.t, r.mapKey(id))
	last := r.Count - 1
	if idx != last {
		moved, err := store.Load[string](r.t, r.winnerKey(last))
		if err != nil {
			return false, fmt.Errorf("load last winner: %w", err)
		}
		if err := store.Save(r.t, r.winnerKey(idx), moved); err != nil {
			return false, err
		}
		if err := store.Save(r.t, r.mapKey(moved), idx); err != nil {
			return false, err
		}
	}
	store.Remove(r.t, r.winnerKey(last))
	r.Count--
	return true, nil
}

// IsWinner reports whether id is an unredeemed winner.
func (r *Reservoir) IsWinner(id string) (bool, error) {
	_, ok, err := r.t.Get(r.mapKey(id))
	return ok, err
}

// Page lists up to limit unredeemed winners starting at index start.
func (r *Reservoir) Page(start, limit uint32) ([]string, error) {
	list := []string{}
	for i := start; i < r.Count && uint32(len(list)) < limit; i++ {
		id, err := store.Load[string](r.t, r.winnerKey(i))
		if err != nil {
			return nil, fmt.Errorf("load winner %d: %w", i, err)
		}
		list = append(list, id)
	}
	return list, nil
}
