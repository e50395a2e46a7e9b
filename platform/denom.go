package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// VoucherDenom computes the denom a chain mints for base received over port/channel,
// e.g. transfer/channel-0/uatom on Osmosis is ibc/27394F...
func VoucherDenom(port, channel, base string) string {
	hash := sha256.Sum256([]byte(port + "/" + channel + "/" + base))
	return "ibc/" + strings.ToUpper(hex.EncodeToString(hash[:]))
}

// DenomPair is one asset as it is known on the local and on the dex chain
type DenomPair struct {
	Local string `json:"local"`
	Dex   string `json:"dex"`
}

// LocalAsset pairs an asset native to the local chain with its voucher on the dex.
// dexChannel is the dex end of the transfer channel.
func LocalAsset(denom, dexChannel string) DenomPair {
	return DenomPair{Local: denom, Dex: VoucherDenom(TransferPort, dexChannel, denom)}
}

// DexAsset pairs an asset native to the dex chain with its voucher on the local chain.
// localChannel is the local end of the transfer channel.
func DexAsset(denom, localChannel string) DenomPair {
	return DenomPair{Local: VoucherDenom(TransferPort, localChannel, denom), Dex: denom}
}

// DenomTable translates denoms between the local and the dex chain
type DenomTable struct {
	toDex   map[string]string
	toLocal map[string]string
}

// NewDenomTable indexes pairs. A denom may appear in one pair per side only.
func NewDenomTable(pairs ...DenomPair) (*DenomTable, error) {
	t := &DenomTable{
		toDex:   make(map[string]string, len(pairs)),
		toLocal: make(map[string]string, len(pairs)),
	}
	var errs []error
	for _, p := range pairs {
		if p.Local == "" || p.Dex == "" {
			errs = append(errs, fmt.Errorf("denom pair %q/%q is incomplete", p.Local, p.Dex))
			continue
		}
		if prev, ok := t.toDex[p.Local]; ok && prev != p.Dex {
			errs = append(errs, fmt.Errorf("local denom %s maps to both %s and %s", p.Local, prev, p.Dex))
			continue
		}
		if prev, ok := t.toLocal[p.Dex]; ok && prev != p.Local {
			errs = append(errs, fmt.Errorf("dex denom %s maps to both %s and %s", p.Dex, prev, p.Local))
			continue
		}
		t.toDex[p.Local] = p.Dex
		t.toLocal[p.Dex] = p.Local
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// DexDenom returns the dex chain denom of a local denom
func (t *DenomTable) DexDenom(local string) (string, error) {
	if d, ok := t.toDex[local]; ok {
		return d, nil
	}
	return "", fmt.Errorf("local denom %s: %w", local, ErrUnknownDenom)
}

// LocalDenom returns the local chain denom of a dex denom
func (t *DenomTable) LocalDenom(dex string) (string, error) {
	if l, ok := t.toLocal[dex]; ok {
		return l, nil
	}
	return "", fmt.Errorf("dex denom %s: %w", dex, ErrUnknownDenom)
}

// ErrUnknownDenom reports a denom with no counterpart on the other chain
var ErrUnknownDenom = errors.New("unknown denom")
