package mapper

import (
	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
)

func changeCollateral(c *eventContext, e *decoder.CollateralEvent) *Bundle {
	vault := e.Vault.Address()

	activity := c.vaultActivity(e.Collection.Address(), &vault)
	activity.OwnerAddr = c.facts.OwnerOf(vault)
	activity.CollateralAmount = ptr(e.CollateralAmount)

	return &Bundle{VaultActivity: activity}
}

func changeDebt(c *eventContext, e *decoder.BorrowEvent) *Bundle {
	vault := e.Vault.Address()

	activity := c.vaultActivity(e.Collection.Address(), &vault)
	activity.OwnerAddr = c.facts.OwnerOf(vault)
	activity.BorrowAmount = ptr(e.BorrowAmount)
	activity.FeeAmount = ptr(e.FeeAmount)

	return &Bundle{VaultActivity: activity}
}

func liquidateVault(c *eventContext, e *decoder.VaultLiquidationEvent) *Bundle {
	vault := e.Vault.Address()

	activity := c.vaultActivity(e.Collection.Address(), &vault)
	activity.OwnerAddr = c.facts.OwnerOf(vault)
	activity.CollateralAmount = ptr(e.CollateralAmount)
	activity.BorrowAmount = ptr(e.BorrowAmount)
	activity.FeeAmount = ptr(e.ProtocolLiquidationFee)
	activity.SocializedAmount = ptr(e.SocializedAmount)
	activity.CollateralizationRateBefore = ptr(e.CollateralizationRateBefore)
	activity.CollateralizationRateAfter = ptr(e.CollateralizationRateAfter)

	return &Bundle{VaultActivity: activity}
}

func changeInterestRate(c *eventContext, e *decoder.InterestRateChangeEvent) *Bundle {
	activity := c.vaultActivity(e.Collection.Address(), nil)
	activity.NewInterestPerSecond = ptr(e.NewInterestPerSecond)

	return &Bundle{VaultActivity: activity}
}
