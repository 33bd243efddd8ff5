package cart

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Header addresses, all relative to the start of the ROM image.
const (
	entryPointAddr    = 0x100
	logoAddr          = 0x104
	titleAddr         = 0x134
	titleLength       = 16
	cgbFlagAddr       = 0x143
	newLicenseeAddr   = 0x144
	cartTypeAddr      = 0x147
	romSizeAddr       = 0x148
	ramSizeAddr       = 0x149
	destinationAddr   = 0x14A
	oldLicenseeAddr   = 0x14B
	headerChecksumAdd = 0x14D
)

// Errors reported while validating a cartridge header. Construction fails
// with one of these, per spec.md's "Header invalid" error category.
var (
	ErrHeaderTooShort      = errors.New("cart: rom image shorter than header")
	ErrHeaderChecksum      = errors.New("cart: header checksum mismatch")
	ErrUnsupportedCartType = errors.New("cart: unsupported cartridge type")
	ErrUnsupportedSizeCode = errors.New("cart: unsupported rom/ram size code")
)

// Kind identifies which MBC variant a cartridge-type byte selects.
type Kind uint8

const (
	KindNoMBC Kind = iota
	KindMBC1
	KindMBC5
)

// Header holds the parsed, validated fields of a cartridge header.
type Header struct {
	Title          string
	CGBFlag        uint8
	CartType       uint8
	ROMSizeCode    uint8
	RAMSizeCode    uint8
	OldLicensee    uint8
	Destination    uint8
	HeaderChecksum uint8

	Kind       Kind
	HasBattery bool
	ROMBytes   int
	RAMBytes   int
}

// cartTypeTable maps the cartridge-type byte to (Kind, hasBattery).
// Only the types spec.md's tagged MBC variant covers are accepted;
// everything else (MBC2, MBC3/RTC and the rest) is a construction error.
// The MBC5+RUMBLE variants collapse onto the plain MBC5 behavior since
// rumble is out of scope per spec.md's Non-goals.
var cartTypeTable = map[uint8]struct {
	kind    Kind
	battery bool
}{
	0x00: {KindNoMBC, false},
	0x08: {KindNoMBC, false}, // ROM+RAM
	0x09: {KindNoMBC, true},  // ROM+RAM+BATTERY
	0x01: {KindMBC1, false},
	0x02: {KindMBC1, false},
	0x03: {KindMBC1, true},
	0x19: {KindMBC5, false},
	0x1A: {KindMBC5, false},
	0x1B: {KindMBC5, true},
	0x1C: {KindMBC5, false}, // MBC5+RUMBLE
	0x1D: {KindMBC5, false}, // MBC5+RUMBLE+RAM
	0x1E: {KindMBC5, true},  // MBC5+RUMBLE+RAM+BATTERY
}

// romSizeBanks returns the number of 16KiB ROM banks for a size code, per
// spec.md §3: (1<<code)*32KiB / 16KiB = (1<<code)*2 banks for codes 0..8.
func romSizeBanks(code uint8) (int, error) {
	if code > 8 {
		return 0, ErrUnsupportedSizeCode
	}
	return (1 << code) * 2, nil
}

// ramSizeBytes returns external RAM size in bytes for a size code.
func ramSizeBytes(code uint8) (int, error) {
	switch code {
	case 0x00:
		return 0, nil
	case 0x01:
		return 2 * 1024, nil
	case 0x02:
		return 8 * 1024, nil
	case 0x03:
		return 32 * 1024, nil
	case 0x04:
		return 128 * 1024, nil
	case 0x05:
		return 64 * 1024, nil
	default:
		return 0, ErrUnsupportedSizeCode
	}
}

// ParseHeader validates and extracts the header of a ROM image.
func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < 0x150 {
		return Header{}, ErrHeaderTooShort
	}

	if err := verifyChecksum(rom); err != nil {
		return Header{}, err
	}

	cartType := rom[cartTypeAddr]
	entry, ok := cartTypeTable[cartType]
	if !ok {
		return Header{}, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCartType, cartType)
	}

	romBanks, err := romSizeBanks(rom[romSizeAddr])
	if err != nil {
		return Header{}, fmt.Errorf("rom size: %w", err)
	}
	ramBytes, err := ramSizeBytes(rom[ramSizeAddr])
	if err != nil {
		return Header{}, fmt.Errorf("ram size: %w", err)
	}

	return Header{
		Title:          cleanTitle(rom[titleAddr : titleAddr+titleLength]),
		CGBFlag:        rom[cgbFlagAddr],
		CartType:       cartType,
		ROMSizeCode:    rom[romSizeAddr],
		RAMSizeCode:    rom[ramSizeAddr],
		OldLicensee:    rom[oldLicenseeAddr],
		Destination:    rom[destinationAddr],
		HeaderChecksum: rom[headerChecksumAdd],
		Kind:           entry.kind,
		HasBattery:     entry.battery,
		ROMBytes:       romBanks * 0x4000,
		RAMBytes:       ramBytes,
	}, nil
}

// verifyChecksum checks the header checksum formula from spec.md §3:
// (sum of -byte[0x134..0x14C] - 1) mod 256.
func verifyChecksum(rom []byte) error {
	var sum uint8
	for i := 0x134; i <= 0x14C; i++ {
		sum = sum - rom[i] - 1
	}
	if sum != rom[headerChecksumAdd] {
		return fmt.Errorf("%w: computed 0x%02X, header has 0x%02X", ErrHeaderChecksum, sum, rom[headerChecksumAdd])
	}
	return nil
}

func cleanTitle(raw []byte) string {
	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		r := rune(b)
		switch {
		case r == 0:
			continue
		case !unicode.IsPrint(r):
			continue
		default:
			runes = append(runes, r)
		}
	}
	title := strings.TrimSpace(string(runes))
	if title == "" {
		return "(untitled)"
	}
	return title
}
