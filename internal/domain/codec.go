package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// CodecVersion is the layout version written after the discriminator.
	CodecVersion byte = 2

	maxAssetLen = 32

	flagListed         = 1 << 0
	flagExercised      = 1 << 1
	flagBuyerExercised = 1 << 2
	flagCancelled      = 1 << 3
	flagHasBuyer       = 1 << 4
	knownFlags         = flagListed | flagExercised | flagBuyerExercised | flagCancelled | flagHasBuyer

	// discriminator, version, id, seller, buyer, 2x asset (len + 32),
	// uid, strike, premium, amount, ask, expiry, flags, record version,
	// created at, updated at
	coveredCallSize = 8 + 1 + 16 + 16 + 16 + 2*(1+maxAssetLen) + 8*6 + 1 + 8 + 8 + 8

	// discriminator, version, vault id, covered call id, asset, balance,
	// paid out, settled to, settled at, flags, created at, updated at
	vaultSize = 8 + 1 + 16 + 16 + (1 + maxAssetLen) + 8 + 8 + 16 + 8 + 1 + 8 + 8
)

var (
	coveredCallDiscriminator = discriminator("CoveredCall")
	vaultDiscriminator       = discriminator("Vault")
)

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// DecodeError reports which field of a stored record failed to decode.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Field, e.Reason)
}

type encoder struct{ buf []byte }

func (e *encoder) bytes(b []byte) { e.buf = append(e.buf, b...) }
func (e *encoder) u8(v byte)      { e.buf = append(e.buf, v) }
func (e *encoder) u64(v uint64)   { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) i64(v int64)    { e.u64(uint64(v)) }

// ts writes unix nanoseconds; the zero time is 0.
func (e *encoder) ts(t time.Time) {
	if t.IsZero() {
		e.i64(0)
		return
	}
	e.i64(t.UnixNano())
}

func (e *encoder) asset(s string) error {
	if len(s) > maxAssetLen {
		return fmt.Errorf("%w: asset %q longer than %d bytes", ErrInvalidParameters, s, maxAssetLen)
	}
	e.u8(byte(len(s)))
	var pad [maxAssetLen]byte
	copy(pad[:], s)
	e.bytes(pad[:])
	return nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) take(n int) []byte {
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() byte    { return d.take(1)[0] }
func (d *decoder) u64() uint64 { return binary.LittleEndian.Uint64(d.take(8)) }
func (d *decoder) i64() int64  { return int64(d.u64()) }
func (d *decoder) ts() time.Time {
	n := d.i64()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
func (d *decoder) id() uuid.UUID {
	var u uuid.UUID
	copy(u[:], d.take(16))
	return u
}

func (d *decoder) asset(field string) (string, error) {
	n := int(d.u8())
	raw := d.take(maxAssetLen)
	if n == 0 || n > maxAssetLen {
		return "", &DecodeError{Field: field, Reason: fmt.Sprintf("invalid length %d", n)}
	}
	return string(raw[:n]), nil
}

func (d *decoder) header(disc [8]byte, size int, record string) error {
	if len(d.buf) != size {
		return &DecodeError{Field: record, Reason: fmt.Sprintf("expected %d bytes, got %d", size, len(d.buf))}
	}
	if [8]byte(d.take(8)) != disc {
		return &DecodeError{Field: "discriminator", Reason: "not a " + record + " record"}
	}
	if v := d.u8(); v != CodecVersion {
		return &DecodeError{Field: "version", Reason: fmt.Sprintf("unsupported layout version %d", v)}
	}
	return nil
}

// EncodeCoveredCall writes c in the fixed little-endian layout.
func EncodeCoveredCall(c *CoveredCall) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, coveredCallSize)}
	e.bytes(coveredCallDiscriminator[:])
	e.u8(CodecVersion)
	e.bytes(c.ID[:])
	e.bytes(c.Seller[:])
	var flags byte
	if c.Buyer != nil {
		flags |= flagHasBuyer
		e.bytes(c.Buyer[:])
	} else {
		e.bytes(uuid.Nil[:])
	}
	if err := e.asset(c.UnderlyingAsset); err != nil {
		return nil, err
	}
	if err := e.asset(c.QuoteAsset); err != nil {
		return nil, err
	}
	e.u64(c.UID)
	e.u64(c.Strike)
	e.u64(c.Premium)
	e.u64(c.Amount)
	e.u64(c.AskPrice)
	e.i64(c.ExpiryTs)
	if c.IsListed {
		flags |= flagListed
	}
	if c.Exercised {
		flags |= flagExercised
	}
	if c.BuyerExercised {
		flags |= flagBuyerExercised
	}
	if c.Cancelled {
		flags |= flagCancelled
	}
	e.u8(flags)
	e.i64(c.Version)
	e.ts(c.CreatedAt)
	e.ts(c.UpdatedAt)
	return e.buf, nil
}

// DecodeCoveredCall is the inverse of EncodeCoveredCall. Timestamps come
// back in UTC.
func DecodeCoveredCall(b []byte) (*CoveredCall, error) {
	d := &decoder{buf: b}
	if err := d.header(coveredCallDiscriminator, coveredCallSize, "CoveredCall"); err != nil {
		return nil, err
	}
	c := &CoveredCall{}
	c.ID = d.id()
	c.Seller = d.id()
	buyer := d.id()
	var err error
	if c.UnderlyingAsset, err = d.asset("underlying_asset"); err != nil {
		return nil, err
	}
	if c.QuoteAsset, err = d.asset("quote_asset"); err != nil {
		return nil, err
	}
	c.UID = d.u64()
	c.Strike = d.u64()
	c.Premium = d.u64()
	c.Amount = d.u64()
	c.AskPrice = d.u64()
	c.ExpiryTs = d.i64()
	flags := d.u8()
	if flags&^knownFlags != 0 {
		return nil, &DecodeError{Field: "flags", Reason: fmt.Sprintf("unknown bits %#x", flags&^knownFlags)}
	}
	if flags&flagHasBuyer != 0 {
		c.Buyer = &buyer
	} else if buyer != uuid.Nil {
		return nil, &DecodeError{Field: "buyer", Reason: "set without presence flag"}
	}
	c.IsListed = flags&flagListed != 0
	c.Exercised = flags&flagExercised != 0
	c.BuyerExercised = flags&flagBuyerExercised != 0
	c.Cancelled = flags&flagCancelled != 0
	c.Version = d.i64()
	c.CreatedAt = d.ts()
	c.UpdatedAt = d.ts()
	return c, nil
}

// EncodeVault writes v in the fixed little-endian layout.
func EncodeVault(v *Vault) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, vaultSize)}
	e.bytes(vaultDiscriminator[:])
	e.u8(CodecVersion)
	e.bytes(v.VaultID[:])
	e.bytes(v.CoveredCallID[:])
	if err := e.asset(v.Asset); err != nil {
		return nil, err
	}
	e.u64(v.Balance)
	e.u64(v.PaidOut)
	var flags byte
	if v.SettledTo != nil {
		flags = flagHasBuyer
		e.bytes(v.SettledTo[:])
	} else {
		e.bytes(uuid.Nil[:])
	}
	if v.SettledAt != nil {
		e.i64(v.SettledAt.UnixNano())
	} else {
		e.i64(0)
	}
	e.u8(flags)
	e.ts(v.CreatedAt)
	e.ts(v.UpdatedAt)
	return e.buf, nil
}

// DecodeVault is the inverse of EncodeVault.
func DecodeVault(b []byte) (*Vault, error) {
	d := &decoder{buf: b}
	if err := d.header(vaultDiscriminator, vaultSize, "Vault"); err != nil {
		return nil, err
	}
	v := &Vault{}
	v.VaultID = d.id()
	v.CoveredCallID = d.id()
	var err error
	if v.Asset, err = d.asset("asset"); err != nil {
		return nil, err
	}
	v.Balance = d.u64()
	v.PaidOut = d.u64()
	settledTo := d.id()
	settledAt := d.i64()
	flags := d.u8()
	if flags&^flagHasBuyer != 0 {
		return nil, &DecodeError{Field: "flags", Reason: fmt.Sprintf("unknown bits %#x", flags&^flagHasBuyer)}
	}
	if flags&flagHasBuyer != 0 {
		v.SettledTo = &settledTo
		at := time.Unix(0, settledAt).UTC()
		v.SettledAt = &at
	}
	v.CreatedAt = d.ts()
	v.UpdatedAt = d.ts()
	return v, nil
}
