package cart

import "testing"

func fakeROM(banks int) []byte {
	rom := make([]byte, banks*0x4000)
	for b := 0; b < banks; b++ {
		for i := 0; i < 0x4000; i++ {
			rom[b*0x4000+i] = uint8(b)
		}
	}
	return rom
}

// TestMBC1BankZeroRead covers spec.md §8 invariant 8: with mode=0 and ROM
// <=512KiB, writing N!=0 to 0x2000-0x3FFF then reading 0x4000 yields bank N;
// writing 0 yields bank 1.
func TestMBC1BankZeroRead(t *testing.T) {
	mbc := NewMBC1(fakeROM(8), 0, false)

	mbc.WriteROM(0x2000, 3)
	if got := mbc.ReadROM(0x4000); got != 3 {
		t.Fatalf("bank after write 3 = %d, want 3", got)
	}

	mbc.WriteROM(0x2000, 0)
	if got := mbc.ReadROM(0x4000); got != 1 {
		t.Fatalf("bank after write 0 = %d, want 1 (remapped)", got)
	}
}

func TestMBC1BankedRAMRoundTrip(t *testing.T) {
	// S6: 256KiB ROM, write 0x0A to 0x0000 (enable), 0x02 to 0x4000 (ram bank
	// 2, ignored in mode 0 for 32KiB RAM), write/read 0xA000, disable/enable.
	mbc := NewMBC1(fakeROM(16), 32*1024, false)

	mbc.WriteROM(0x0000, 0x0A)
	mbc.WriteROM(0x4000, 0x02)
	mbc.WriteRAM(0xA000, 0x55)

	mbc.WriteROM(0x0000, 0x00)
	if got := mbc.ReadRAM(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read = 0x%02X, want 0xFF", got)
	}

	mbc.WriteROM(0x0000, 0x0A)
	if got := mbc.ReadRAM(0xA000); got != 0x55 {
		t.Fatalf("re-enabled RAM read = 0x%02X, want 0x55", got)
	}
}

func TestMBC1Mode1LargeROMRemapsBankZero(t *testing.T) {
	mbc := NewMBC1(fakeROM(64), 0, false) // 1MiB -> largeROM()==true
	mbc.WriteROM(0x6000, 0x01)            // mode=1
	mbc.WriteROM(0x4000, 0x02)            // bank2=2

	if got := mbc.ReadROM(0x0000); got != 64 { // bank2<<5 = 64
		t.Fatalf("mode-1 bank-0 area read = %d, want 64", got)
	}
}

func TestMBC5BankZeroIsValid(t *testing.T) {
	mbc := NewMBC5(fakeROM(512), 0, false)
	mbc.WriteROM(0x2000, 0x00)
	if got := mbc.ReadROM(0x4000); got != 0 {
		t.Fatalf("MBC5 bank 0 read = %d, want 0 (unlike MBC1)", got)
	}

	mbc.WriteROM(0x2000, 0xFF)
	mbc.WriteROM(0x3000, 0x01)
	if got := mbc.ReadROM(0x4000); got != 0x1FF {
		t.Fatalf("MBC5 9-bit bank read = %d, want %d", got, 0x1FF)
	}
}

func TestMBC1SaveLoadRoundTrip(t *testing.T) {
	mbc := NewMBC1(fakeROM(8), 8*1024, true)
	mbc.WriteROM(0x0000, 0x0A)
	mbc.WriteRAM(0xA000, 0x42)

	blob := mbc.Save()
	restored := NewMBC1(fakeROM(8), 8*1024, true)
	if err := restored.LoadSave(blob); err != nil {
		t.Fatalf("LoadSave() error = %v", err)
	}
	restored.WriteROM(0x0000, 0x0A)
	if got := restored.ReadRAM(0xA000); got != 0x42 {
		t.Fatalf("restored RAM = 0x%02X, want 0x42", got)
	}

	if err := restored.LoadSave([]byte{1, 2, 3}); err != ErrSaveSizeMismatch {
		t.Fatalf("LoadSave() size mismatch error = %v, want ErrSaveSizeMismatch", err)
	}
}
