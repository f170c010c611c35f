package staking

import (
	"fmt"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Source draws uniform integers. *prng.Prng satisfies it.
type Source interface {
	Uniform(n uint64) uint64
}

// Roller turns charges into ingredients.
type Roller struct {
	Tables map[uint8][]StoredSetWeight
	Sets   []StoredIngredientSet
	// Materials names each material index for error messages.
	Materials   []string
	Ingredients int
}

// Roll draws the ingredients won by charges. charges and quantities are
// indexed by material; quantities counts the skulls of each material that
// produced the charges.
//
// Every charge of material i rolls 1+a+b times, with a drawn from
// [0, quantities[i]] and b from [0, 2*types], where types is the number of
// materials with a nonzero quantity. Each roll picks an ingredient set by
// weight, and every win then picks one member of its set uniformly.
func (r Roller) Roll(src Source, charges, quantities []int) ([]uint32, error) {
	types := 0
	for _, q := range quantities {
		if q > 0 {
			types++
		}
	}
	varietyLim := uint64(2*types + 1)
	wins := make([]int, len(r.Sets))

	for mat, count := range charges {
		if count == 0 {
			continue
		}
		tbl, ok := r.Tables[uint8(mat)]
		if !ok {
			return nil, apierror.PreconditionFailed(fmt.Sprintf("%s staking table has not been defined", r.materialName(mat)))
		}
		var total uint64
		for _, w := range tbl {
			total += uint64(w.Weight)
		}
		if total == 0 {
			return nil, apierror.PreconditionFailed(fmt.Sprintf("NoWeight: the %s staking table has no weight", r.materialName(mat)))
		}
		for ch := 0; ch < count; ch++ {
			a := src.Uniform(uint64(quantities[mat]) + 1)
			b := src.Uniform(varietyLim)
			rolls := 1 + a + b
			for i := uint64(0); i < rolls; i++ {
				set := pick(tbl, src.Uniform(total))
				if int(set) >= len(wins) {
					return nil, apierror.StorageCorrupt(fmt.Sprintf("Staking table references unknown ingredient set %d", set))
				}
				wins[set]++
			}
		}
	}

	generated := make([]uint32, r.Ingredients)
	for s, n := range wins {
		if n == 0 {
			continue
		}
		members := r.Sets[s].List
		if len(members) == 0 {
			return nil, apierror.PreconditionFailed(fmt.Sprintf("Ingredient set %s has no members", r.Sets[s].Name))
		}
		for i := 0; i < n; i++ {
			ingr := members[src.Uniform(uint64(len(members)))]
			if int(ingr) >= len(generated) {
				return nil, apierror.StorageCorrupt(fmt.Sprintf("Ingredient set %s references unknown ingredient %d", r.Sets[s].Name, ingr))
			}
			generated[ingr]++
		}
	}
	return generated, nil
}

// pick walks the cumulative weights until they exceed draw.
func pick(tbl []StoredSetWeight, draw uint64) uint8 {
	var tally uint64
	for _, w := range tbl {
		tally += uint64(w.Weight)
		if tally > draw {
			return w.Set
		}
	}
	return tbl[len(tbl)-1].Set
}

func (r Roller) materialName(i int) string {
	if i < len(r.Materials) {
		return r.Materials[i]
	}
	return fmt.Sprintf("Material %d", i)
}

// processCharges rolls the charges with the message PRNG and credits the
// winnings to addr.
func processCharges(c *call.Context, addr string, charges, quantities []int) ([]IngredientQty, error) {
	t := c.Txn()
	names, err := Ingredients(t)
	if err != nil {
		return nil, err
	}
	materials, err := Materials(t)
	if err != nil {
		return nil, err
	}
	sets, err := IngredientSets(t)
	if err != nil {
		return nil, err
	}
	roller := Roller{
		Tables:      make(map[uint8][]StoredSetWeight),
		Sets:        sets,
		Materials:   materials,
		Ingredients: len(names),
	}
	for mat, count := range charges {
		if count == 0 {
			continue
		}
		tbl, ok, err := loadTable(t, uint8(mat))
		if err != nil {
			return nil, err
		}
		if ok {
			roller.Tables[uint8(mat)] = tbl
		}
	}
	rng, err := c.Rng(nil)
	if err != nil {
		return nil, err
	}
	generated, err := roller.Roll(rng, charges, quantities)
	if err != nil {
		return nil, err
	}
	return credit(t, addr, names, generated)
}
