package snapshot

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a SignatureImage to CBOR bytes.
func Marshal(img *SignatureImage) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes a SignatureImage from CBOR bytes.
func Unmarshal(data []byte) (*SignatureImage, error) {
	var img SignatureImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal signature image: %w", err)
	}
	return &img, nil
}
