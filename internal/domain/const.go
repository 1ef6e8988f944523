package domain

const (
	// Native ledger type tags
	ObjectCoreType = "0x1::object::ObjectCore"
	TokenBurnType  = "0x4::collection::Burn"

	// Seeds used to derive the protocol module addresses from the deployer account
	VaultModuleSeed  = "MIRAGE"
	MarketModuleSeed = "MIRAGE_MARKET"

	// resourceAddressScheme is appended to the seed when deriving a resource account address
	resourceAddressScheme byte = 0xFF
)
