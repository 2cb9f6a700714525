package io

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/xfempty/openmc/bank"
)

/*
The binary format used for bank checkpoints is as follows:
    |-- 1 --||-- 2 --||-- ... 3 ... --||-- ... 4 ... --|

    1 - (int32) Flag indicating the endianness of the file. -1 indicates a
        little endian byte ordering and 0 indicates a big endian byte order.
    2 - (int32) Size of a RunHeader struct. Should be checked for
        consistency.
    3 - (RunHeader) Header containing everything needed to resume the run
        deterministically.
    4 - ([]bank.Site) Contiguous block of sites in the version 1 wire
        layout.
*/

const (
	// Endianness flag written by default. Checkpoints of either
	// endianness can be read.
	DefaultEndiannessFlag int32 = -1

	// BankVersion is the wire layout version of bank.Site written here.
	BankVersion int32 = 1

	runHeaderSize int32 = 4 + 4 + 5*8
)

// RunHeader describes a checkpointed fission bank. Together with the sites
// it is sufficient to resume the cycle loop with bit-identical results:
// Cycle is the cycle that produced the bank, and the RNG parameters must
// match the resuming configuration.
type RunHeader struct {
	Version  int32
	_        int32
	Cycle    int64
	BaseSeed int64
	NTarget  int64
	Stride   int64
	Count    int64
}

// WriteBank writes a bank checkpoint to the given file.
func WriteBank(file string, hd *RunHeader, sites []bank.Site) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	hd.Version = BankVersion
	hd.Count = int64(len(sites))

	order := endianness(DefaultEndiannessFlag)
	if err = binary.Write(f, order, DefaultEndiannessFlag); err != nil {
		return err
	}
	if err = binary.Write(f, order, runHeaderSize); err != nil {
		return err
	}
	if err = binary.Write(f, order, hd); err != nil {
		return err
	}
	return binary.Write(f, order, sites)
}

// ReadBankHeaderAt reads only the header of a bank checkpoint.
func ReadBankHeaderAt(file string, hd *RunHeader) error {
	f, _, err := readBankHeaderAt(file, hd)
	if f != nil {
		f.Close()
	}
	return err
}

// ReadBankAt reads a bank checkpoint, validating the layout version and the
// unit-norm invariant of every site direction.
func ReadBankAt(file string) (*RunHeader, []bank.Site, error) {
	hd := &RunHeader{}
	f, order, err := readBankHeaderAt(file, hd)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, nil, err
	}
	defer f.Close()

	sites := make([]bank.Site, hd.Count)
	if err = binary.Read(f, order, sites); err != nil {
		return nil, nil, err
	}

	for i := range sites {
		if err := ValidSite(&sites[i]); err != nil {
			return nil, nil, fmt.Errorf("%s: site %d: %w", file, i, err)
		}
	}
	return hd, sites, nil
}

// ValidSite checks the invariants every exchanged site must satisfy.
func ValidSite(s *bank.Site) error {
	norm := math.Sqrt(s.U[0]*s.U[0] + s.U[1]*s.U[1] + s.U[2]*s.U[2])
	if math.Abs(norm-1) > 1e-10 {
		return fmt.Errorf("direction norm is %g, not 1", norm)
	}
	if !(s.Weight > 0) {
		return fmt.Errorf("non-positive weight %g", s.Weight)
	}
	return nil
}

func readBankHeaderAt(
	file string, hd *RunHeader,
) (*os.File, binary.ByteOrder, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, binary.LittleEndian, err
	}

	// order doesn't matter for this read, since flags are symmetric.
	flag, err := readInt32(f, binary.LittleEndian)
	if err != nil {
		return f, binary.LittleEndian, err
	}
	order := endianness(flag)

	size, err := readInt32(f, order)
	if err != nil {
		return f, order, err
	}
	if size != runHeaderSize {
		return f, order, fmt.Errorf(
			"%s: header size is %d, expected %d", file, size, runHeaderSize,
		)
	}

	if err = binary.Read(f, order, hd); err != nil {
		return f, order, err
	}
	if hd.Version != BankVersion {
		return f, order, fmt.Errorf(
			"%s: bank layout version is %d, expected %d",
			file, hd.Version, BankVersion,
		)
	}
	if hd.Count < 0 {
		return f, order, fmt.Errorf("%s: negative site count", file)
	}
	return f, order, nil
}

func readInt32(f *os.File, order binary.ByteOrder) (int32, error) {
	var n int32
	err := binary.Read(f, order, &n)
	return n, err
}

// endianness converts an endianness flag to a byte order.
func endianness(flag int32) binary.ByteOrder {
	if flag == -1 {
		return binary.LittleEndian
	} else if flag == 0 {
		return binary.BigEndian
	}
	panic("Unrecognized endianness flag.")
}
