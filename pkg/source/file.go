package source

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FileVersion is the current program file format version.
// Increment when making incompatible changes to the format.
const FileVersion uint16 = 1

// FileMagic identifies a CBOR-encoded source program ("TCVM").
const FileMagic = "TCVM"

// File is the on-disk form of a source program.
type File struct {
	Magic   string   `cbor:"1,keyasint"`
	Version uint16   `cbor:"2,keyasint"`
	Words   []uint64 `cbor:"3,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("source: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes a source program as a CBOR program file.
func Marshal(words []Word) ([]byte, error) {
	f := File{
		Magic:   FileMagic,
		Version: FileVersion,
		Words:   make([]uint64, len(words)),
	}
	for i, w := range words {
		f.Words[i] = uint64(w)
	}
	return cborEncMode.Marshal(&f)
}

// Unmarshal decodes a CBOR program file.
func Unmarshal(data []byte) ([]Word, error) {
	var f File
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("source: unmarshal program: %w", err)
	}
	if f.Magic != FileMagic {
		return nil, fmt.Errorf("source: invalid program magic: expected %q, got %q", FileMagic, f.Magic)
	}
	if f.Version > FileVersion {
		return nil, fmt.Errorf("source: program version %d is newer than supported version %d", f.Version, FileVersion)
	}
	words := make([]Word, len(f.Words))
	for i, w := range f.Words {
		words[i] = Word(w)
	}
	return words, nil
}
