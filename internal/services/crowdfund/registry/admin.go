package registry

import (
	"strings"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/feeoracle"
)

// Settings returns the current registry configuration.
func (r *Registry) Settings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Settings{
		Admin:     r.admin,
		Treasury:  r.treasury,
		Scheduler: r.schedulerID,
		Paused:    r.paused,
	}
}

// Pause stops new campaign creation.
func (r *Registry) Pause(caller string) error {
	return r.update(caller, func() error {
		r.paused = true
		return nil
	})
}

// Unpause resumes campaign creation.
func (r *Registry) Unpause(caller string) error {
	return r.update(caller, func() error {
		r.paused = false
		return nil
	})
}

// SetTreasury changes the fee and commission recipient for campaigns created
// from now on. Existing campaigns keep the treasury they were created with.
func (r *Registry) SetTreasury(caller, treasury string) error {
	treasury = strings.TrimSpace(treasury)
	return r.update(caller, func() error {
		if treasury == "" {
			return rejection(apperrors.CodeAddressZero)
		}
		r.treasury = treasury
		return nil
	})
}

// SetFeeOracle replaces the creation fee oracle.
func (r *Registry) SetFeeOracle(caller string, oracle feeoracle.Oracle) error {
	return r.update(caller, func() error {
		if oracle == nil {
			return rejection(apperrors.CodeAddressZero)
		}
		r.oracle = oracle
		return nil
	})
}

// principalSetter is implemented by schedulers whose finalizing identity
// follows the registry setting.
type principalSetter interface {
	SetPrincipal(principal string) error
}

// SetScheduler changes the principal allowed to finalize rounds of
// campaigns created from now on. A scheduler that finalizes under its own
// identity is switched to the new principal in the same call.
func (r *Registry) SetScheduler(caller, scheduler string) error {
	scheduler = strings.TrimSpace(scheduler)
	return r.update(caller, func() error {
		if scheduler == "" {
			return rejection(apperrors.CodeAddressZero)
		}
		if ps, ok := r.scheduler.(principalSetter); ok {
			if err := ps.SetPrincipal(scheduler); err != nil {
				return apperrors.Wrap(apperrors.CodeInvalidArgument, "update scheduler principal", err)
			}
		}
		r.schedulerID = scheduler
		return nil
	})
}

func (r *Registry) update(caller string, apply func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(caller) != r.admin {
		return rejection(apperrors.CodeNotAdmin)
	}
	if err := apply(); err != nil {
		return err
	}
	r.log.Info("registry settings updated",
		"treasury", r.treasury,
		"scheduler", r.schedulerID,
		"paused", r.paused,
	)
	return nil
}
