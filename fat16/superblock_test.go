package fat16

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPreparedSuperblockLayout(t *testing.T) {
	sb := NewPreparedSuperblock(DiskSize, ClusterSize)

	want := Superblock{
		TotalClusters: 4093,
		FATOffset:     20,
		RootDirOffset: 20 + 2*4093,
		DataOffset:    20 + 2*4093 + 4096,
		ClusterSize:   4096,
	}
	if diff := cmp.Diff(want, sb); diff != "" {
		t.Errorf("unexpected layout (-want +got):\n%s", diff)
	}

	if err := sb.Validate(); err != nil {
		t.Errorf("prepared superblock does not validate: %v", err)
	}

	if sb.EntriesPerDirectory() != 128 {
		t.Errorf("expected 128 entries per directory, got %d", sb.EntriesPerDirectory())
	}
}

func TestSuperblockRoundTrip(t *testing.T) {
	sb := NewPreparedSuperblock(DiskSize, ClusterSize)

	raw := make([]byte, SuperblockSize)
	if err := sb.encode(raw); err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeSuperblock(raw)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(sb, decoded); diff != "" {
		t.Errorf("superblock changed across encode/decode (-want +got):\n%s", diff)
	}
}

func TestSuperblockEncodingIsLittleEndian(t *testing.T) {
	sb := Superblock{
		TotalClusters: 0x01020304,
		FATOffset:     20,
		RootDirOffset: 30,
		DataOffset:    40,
		ClusterSize:   4096,
	}

	raw := make([]byte, SuperblockSize)
	if err := sb.encode(raw); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x04, 0x03, 0x02, 0x01}
	for i, b := range want {
		if raw[i] != b {
			t.Fatalf("byte %d is %#02x, want %#02x", i, raw[i], b)
		}
	}
}

func TestSuperblockValidateRejectsDamage(t *testing.T) {
	base := NewPreparedSuperblock(DiskSize, ClusterSize)

	for _, test := range []struct {
		name   string
		mutate func(*Superblock)
	}{
		{"zero cluster size", func(sb *Superblock) { sb.ClusterSize = 0 }},
		{"unaligned cluster size", func(sb *Superblock) { sb.ClusterSize = 1000 }},
		{"too few clusters", func(sb *Superblock) { sb.TotalClusters = 2 }},
		{"fat out of bounds", func(sb *Superblock) { sb.FATOffset = DiskSize }},
		{"root out of bounds", func(sb *Superblock) { sb.RootDirOffset = DiskSize }},
		{"data out of bounds", func(sb *Superblock) { sb.DataOffset = DiskSize }},
	} {
		sb := base
		test.mutate(&sb)
		if err := sb.Validate(); err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}
}
