package lease

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Spec is what a customer asks for when opening a lease
type Spec struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	// Downpayment is paid by the customer, Loan is lent by the pool. Both are in the lpn.
	Downpayment platform.Coin `json:"downpayment"`
	Loan        platform.Coin `json:"loan"`
	// Asset is the denom of the leased asset
	Asset string `json:"asset"`
	// Lpn is the denom the lease is paid back in
	Lpn string `json:"lpn"`
}

// Validate checks the spec before any saga is started
func (s Spec) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("lease id is required"))
	}
	if s.Customer == "" {
		errs = append(errs, errors.New("customer is required"))
	}
	if s.Asset == "" || s.Lpn == "" {
		errs = append(errs, errors.New("asset and lpn denoms are required"))
	}
	if s.Asset == s.Lpn {
		errs = append(errs, fmt.Errorf("asset and lpn must differ, both are %s", s.Asset))
	}
	if s.Downpayment.Amount.IsNegative() || s.Loan.Amount.IsNegative() {
		errs = append(errs, errors.New("downpayment and loan must not be negative"))
	}
	if s.Downpayment.IsZero() && s.Loan.IsZero() {
		errs = append(errs, errors.New("downpayment and loan are both zero"))
	}
	return errors.Join(errs...)
}

// BuyAsset converts the downpayment and the loan into the leased asset
type BuyAsset struct {
	Spec Spec `json:"spec"`
}

func (b BuyAsset) Label() string { return "open-lease/" + b.Spec.ID }

func (b BuyAsset) CoinsToTransferOut() []platform.Coin {
	return []platform.Coin{b.Spec.Downpayment, b.Spec.Loan}
}

func (b BuyAsset) CoinsToSwap() []platform.Coin {
	return b.CoinsToTransferOut()
}

func (b BuyAsset) OutDenom() string { return b.Spec.Asset }

// SellAsset converts the leased asset back into the lpn
type SellAsset struct {
	Spec  Spec          `json:"spec"`
	Asset platform.Coin `json:"asset"`
}

func (s SellAsset) Label() string { return "close-lease/" + s.Spec.ID }

func (s SellAsset) CoinsToTransferOut() []platform.Coin {
	return []platform.Coin{s.Asset}
}

func (s SellAsset) CoinsToSwap() []platform.Coin {
	return []platform.Coin{s.Asset}
}

func (s SellAsset) OutDenom() string { return s.Spec.Lpn }
