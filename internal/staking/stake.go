package staking

import (
	"encoding/json"
	"fmt"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/baedrik/skulls2/pkg/apierror"
)

func chargesSince(now, start, cooldown uint64) uint8 {
	if now <= start || cooldown == 0 {
		return 0
	}
	n := (now - start) / cooldown
	if n > MaxCharges {
		n = MaxCharges
	}
	return uint8(n)
}

func requireStaking(t *store.Txn) error {
	halts, err := call.LoadHalts(t)
	if err != nil {
		return err
	}
	if halts.Staking {
		return apierror.Halted("Staking")
	}
	return nil
}

func loadRecord(t *store.Txn, tokenID string) (SkullStake, bool, error) {
	return store.MayLoad[SkullStake](t, skullKey(tokenID))
}

// SetStake replaces the caller's staked skulls. A user staking for the first
// time earns one charge for every skull whose last claim is older than the
// cooldown.
func SetStake(c *call.Context, tokenIDs []string) (StakeInfo, error) {
	t := c.Txn()
	env := c.Env()
	user := env.Caller
	if err := requireStaking(t); err != nil {
		return StakeInfo{}, err
	}
	if len(tokenIDs) > MaxStaked {
		return StakeInfo{}, apierror.LimitExceeded(fmt.Sprintf("You can only stake up to %d skulls", MaxStaked))
	}
	state, err := LoadState(t)
	if err != nil {
		return StakeInfo{}, err
	}
	materials, err := Materials(t)
	if err != nil {
		return StakeInfo{}, err
	}
	mine, notMine, err := verifyOwnership(c, user, tokenIDs)
	if err != nil {
		return StakeInfo{}, err
	}
	if len(notMine) > 0 {
		return StakeInfo{}, apierror.Unauthorized(fmt.Sprintf("You do not own skull(s): %s", joinIDs(notMine)))
	}
	_, staked, err := stakeList(t, user)
	if err != nil {
		return StakeInfo{}, err
	}
	firstStake := !staked
	if firstStake && len(mine) == 0 {
		return StakeInfo{}, apierror.PreconditionFailed("Do not waste your First-Stake reward by initializing an empty staking inventory")
	}

	now := env.Now
	var cutoff uint64
	if now > state.Cooldown {
		cutoff = now - state.Cooldown
	}
	charges := make([]int, len(materials))
	bonus := false
	infos := make([]ChargeInfo, 0, len(mine))
	for _, o := range mine {
		rec, _, err := loadRecord(t, o.id)
		if err != nil {
			return StakeInfo{}, err
		}
		if firstStake && rec.Claim <= cutoff {
			mat, err := material(o, state.SkullIdx, len(materials))
			if err != nil {
				return StakeInfo{}, err
			}
			charges[mat]++
			bonus = true
			rec.Claim = now
		}
		if rec.Addr != user {
			rec.Addr = user
			rec.Stake = now
		}
		if err := store.Save(t, skullKey(o.id), rec); err != nil {
			return StakeInfo{}, err
		}
		infos = append(infos, ChargeInfo{
			TokenID:     o.id,
			ChargeStart: rec.Stake,
			Charges:     chargesSince(now, rec.Stake, state.Cooldown),
		})
	}
	if err := store.Save(t, userKey(user), ids(mine)); err != nil {
		return StakeInfo{}, err
	}

	rewards := []IngredientQty{}
	if bonus {
		if rewards, err = processCharges(c, user, charges, charges); err != nil {
			return StakeInfo{}, err
		}
	} else if firstStake {
		return StakeInfo{}, apierror.PreconditionFailed("All skulls being staked have not cooled down long enough and are not eligible for First-Stake rewards and would waste this one time offer")
	}
	return StakeInfo{ChargeInfos: infos, Rewards: rewards}, nil
}

// ClaimStake converts the charges of the caller's staked skulls into
// ingredients and restarts their charging.
func ClaimStake(c *call.Context) (StakeInfo, error) {
	t := c.Txn()
	env := c.Env()
	user := env.Caller
	if err := requireStaking(t); err != nil {
		return StakeInfo{}, err
	}
	list, staked, err := stakeList(t, user)
	if err != nil {
		return StakeInfo{}, err
	}
	if !staked {
		return StakeInfo{}, apierror.PreconditionFailed("You have never started staking")
	}
	if len(list) == 0 {
		return StakeInfo{}, apierror.PreconditionFailed("You are not staking any skulls")
	}
	state, err := LoadState(t)
	if err != nil {
		return StakeInfo{}, err
	}
	materials, err := Materials(t)
	if err != nil {
		return StakeInfo{}, err
	}
	mine, _, err := verifyOwnership(c, user, list)
	if err != nil {
		return StakeInfo{}, err
	}
	if len(mine) == 0 {
		return StakeInfo{}, apierror.PreconditionFailed("You no longer own any of the skulls you were staking")
	}

	now := env.Now
	charges := make([]int, len(materials))
	quantities := make([]int, len(materials))
	accrued := false
	infos := make([]ChargeInfo, 0, len(mine))
	kept := make([]string, 0, len(mine))
	for _, o := range mine {
		rec, ok, err := loadRecord(t, o.id)
		if err != nil {
			return StakeInfo{}, err
		}
		if !ok {
			rec = SkullStake{Addr: user, Stake: now}
		}
		// the skull was restaked by a later owner
		if rec.Addr != user {
			continue
		}
		if n := chargesSince(now, rec.Stake, state.Cooldown); n > 0 {
			mat, err := material(o, state.SkullIdx, len(materials))
			if err != nil {
				return StakeInfo{}, err
			}
			quantities[mat]++
			charges[mat] += int(n)
			accrued = true
			elapsed := now - rec.Stake
			rec.Stake = now - elapsed%state.Cooldown
			rec.Claim = rec.Stake
			if err := store.Save(t, skullKey(o.id), rec); err != nil {
				return StakeInfo{}, err
			}
		}
		infos = append(infos, ChargeInfo{TokenID: o.id, ChargeStart: rec.Stake})
		kept = append(kept, o.id)
	}
	if err := store.Save(t, userKey(user), kept); err != nil {
		return StakeInfo{}, err
	}
	if !accrued {
		return StakeInfo{}, apierror.PreconditionFailed("None of your staked skulls have charges")
	}
	rewards, err := processCharges(c, user, charges, quantities)
	if err != nil {
		return StakeInfo{}, err
	}
	return StakeInfo{ChargeInfos: infos, Rewards: rewards}, nil
}

func setStake(c *call.Context, raw json.RawMessage) (interface{}, error) {
	var msg struct {
		TokenIDs []string `json:"token_ids"`
	}
	if err := call.Decode(raw, &msg); err != nil {
		return nil, err
	}
	info, err := SetStake(c, msg.TokenIDs)
	if err != nil {
		return nil, err
	}
	return call.Answer("stake_info", info), nil
}

func claimStake(c *call.Context, raw json.RawMessage) (interface{}, error) {
	info, err := ClaimStake(c)
	if err != nil {
		return nil, err
	}
	return call.Answer("stake_info", info), nil
}
