// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package bios provides the read-only firmware image the CPU boots from.
package bios

import (
	"encoding/binary"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ezrec/prosur/internal"
	"github.com/ezrec/prosur/memory"
)

// SIZE is the only accepted firmware image size.
const SIZE = memory.BIOS_SIZE

// Bios is an immutable firmware image.
type Bios struct {
	Log logrus.FieldLogger // Diagnostic output. Defaults to the standard logger.

	data [SIZE]byte
}

// New creates a firmware image from a byte slice. A slice of any size
// other than SIZE yields an all-zero image and ErrSize. The image is
// always usable.
func New(data []byte, log logrus.FieldLogger) (bios *Bios, err error) {
	bios = &Bios{Log: internal.Logger(log)}

	if len(data) != SIZE {
		err = ErrSize
		bios.Log.Infof("bios: %v (%v bytes)", err, len(data))
		return
	}

	copy(bios.data[:], data)

	return
}

// Open loads a firmware image from a filesystem.
// On failure the returned image is all-zero and still usable.
func Open(filesys fs.FS, name string, log logrus.FieldLogger) (bios *Bios, err error) {
	bios = &Bios{Log: internal.Logger(log)}

	defer func() {
		if err != nil {
			err = &ErrLoad{Path: name, Err: err}
			bios.Log.Infof("bios: %v", err)
		}
	}()

	file, err := filesys.Open(name)
	if err != nil {
		return
	}
	defer file.Close()

	err = bios.read(file)
	return
}

// Load loads a firmware image from a host file path.
// On failure the returned image is all-zero and still usable.
func Load(path string, log logrus.FieldLogger) (bios *Bios, err error) {
	bios = &Bios{Log: internal.Logger(log)}

	defer func() {
		if err != nil {
			err = &ErrLoad{Path: path, Err: err}
			bios.Log.Infof("bios: %v", err)
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	err = bios.read(file)
	return
}

// read fills the image from a file, checking its size first.
func (bios *Bios) read(file fs.File) (err error) {
	info, err := file.Stat()
	if err != nil {
		return
	}

	if info.Size() != SIZE {
		err = ErrSize
		return
	}

	bios.Log.Infof("bios: reading %v bytes", SIZE)

	n, err := io.ReadFull(file, bios.data[:])
	if err != nil {
		clear(bios.data[:])
		bios.Log.Infof("bios: only %v bytes could be read", n)
		err = ErrShort
		return
	}

	bios.Log.Debug("bios: all bytes read successfully")

	return
}

// Load32 reads a little-endian word at an offset into the image.
// The offset is wrapped into the image and forced to word alignment.
func (bios *Bios) Load32(offset uint32) uint32 {
	offset &= memory.BIOS_MASK &^ 3
	bios.Log.Debugf("bios: fetching from %x", offset)
	return binary.LittleEndian.Uint32(bios.data[offset:])
}

// Load16 reads a little-endian halfword at an offset into the image.
func (bios *Bios) Load16(offset uint32) uint16 {
	offset &= memory.BIOS_MASK &^ 1
	return binary.LittleEndian.Uint16(bios.data[offset:])
}

// Load8 reads a byte at an offset into the image.
func (bios *Bios) Load8(offset uint32) uint8 {
	return bios.data[offset&memory.BIOS_MASK]
}

// Bytes returns a copy of the image.
func (bios *Bios) Bytes() []byte {
	data := make([]byte, SIZE)
	copy(data, bios.data[:])
	return data
}
