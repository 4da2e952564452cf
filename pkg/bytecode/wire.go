package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrVersion is returned when decoding bytecode of another format version.
var ErrVersion = errors.New("bytecode: unsupported format version")

// cborEncMode uses canonical encoding so the same ByteCode always
// serializes to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a ByteCode to CBOR bytes.
func Marshal(bc *ByteCode) ([]byte, error) {
	return cborEncMode.Marshal(bc)
}

// Unmarshal deserializes a ByteCode from CBOR bytes and verifies it.
func Unmarshal(data []byte) (*ByteCode, error) {
	var bc ByteCode
	if err := cbor.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal: %w", err)
	}
	if bc.Version != FormatVersion {
		return nil, fmt.Errorf("%w %d (want %d)", ErrVersion, bc.Version, FormatVersion)
	}
	if err := bc.Verify(); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal: %w", err)
	}
	return &bc, nil
}
